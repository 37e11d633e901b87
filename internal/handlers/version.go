package handlers

import (
	"net/http"
	"runtime"
)

// VersionInfo is the build identity served at /version.
type VersionInfo struct {
	Version      string `json:"version"`
	RulesVersion string `json:"rules_version"`
	GoVersion    string `json:"go_version"`
}

// VersionHandler returns a handler for the build and rule table versions.
func VersionHandler(version, rulesVersion string) http.HandlerFunc {
	info := VersionInfo{Version: version, RulesVersion: rulesVersion, GoVersion: runtime.Version()}
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, info)
	}
}
