package middleware

import (
	"net/http"

	"github.com/benvon/thought-capture/internal/database"
	logpkg "github.com/benvon/thought-capture/internal/logger"
	"go.uber.org/zap"
)

// ActivityTracking records each authenticated call so the reprocessor knows
// who is active. Recording resumes reprocessing for a paused user; pausing
// idle users is the reprocessor's job.
func ActivityTracking(activity database.UserActivityStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := UserFromContext(r); user != nil {
				// Activity tracking never fails the request.
				if err := activity.UpdateLastInteraction(r.Context(), user.ID); err != nil {
					logger.Warn("user_activity_update_failed",
						zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
						zap.Error(err),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
