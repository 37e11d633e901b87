package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/services/oidc"
	"github.com/spf13/cobra"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test database connectivity and an OIDC configuration",
		Long:  "Ping the database, then resolve the provider's login endpoints and fetch its key set the way the API does",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return errors.New("--provider is required")
			}

			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			out := cmd.OutOrStdout()

			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("database ping failed: %w", err)
			}
			fmt.Fprintln(out, "✓ Database is reachable")

			client := &http.Client{Timeout: 10 * time.Second}
			p := oidc.NewProvider(database.NewOIDCConfigRepository(db), client, nil)

			registration, err := p.GetConfig(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to get OIDC config: %w", err)
			}
			fmt.Fprintf(out, "\nTesting OIDC configuration for provider: %s\n", provider)
			fmt.Fprintf(out, "Issuer: %s\n", registration.Issuer)

			derived := oidc.Endpoint(registration)
			fmt.Fprintf(out, "Derived authorize URL: %s\n", derived.AuthURL)
			fmt.Fprintf(out, "Derived token URL: %s\n", derived.TokenURL)

			login, err := p.GetLoginConfig(ctx, provider)
			if err != nil {
				return fmt.Errorf("failed to build login config: %w", err)
			}
			fmt.Fprintf(out, "✓ Login endpoints resolved (authorize: %s)\n", login.AuthorizationEndpoint)

			jwksURL, err := p.JWKSURL(ctx, registration)
			if err != nil {
				return fmt.Errorf("failed to resolve JWKS url: %w", err)
			}
			fmt.Fprintf(out, "\nTesting JWKS endpoint: %s\n", jwksURL)
			keys, err := oidc.NewJWKSManager(ctx, client).GetJWKS(ctx, jwksURL)
			if err != nil {
				return err
			}
			if keys.Len() == 0 {
				return errors.New("JWKS endpoint returned no keys")
			}
			fmt.Fprintf(out, "✓ JWKS endpoint returned %d key(s)\n", keys.Len())

			fmt.Fprintln(out, "\n✓ OIDC configuration test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (required)")

	return cmd
}
