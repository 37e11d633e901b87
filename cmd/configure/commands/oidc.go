package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/thought-capture/internal/database"
	"github.com/benvon/thought-capture/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var issuer, domain, clientID, clientSecret, redirectURI, jwksURL string

	cmd := &cobra.Command{
		Use:   "oidc <provider-name>",
		Short: "Configure OIDC provider",
		Long:  "Create or update an OIDC provider registration. The name is any identifier (e.g. 'cognito', 'okta') and must match OIDC_PROVIDER on the API.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if provider == "" {
				return errors.New("provider name cannot be empty")
			}
			if issuer == "" || clientID == "" || redirectURI == "" {
				return errors.New("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
			}

			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			oidcRepo := database.NewOIDCConfigRepository(db)
			ctx := context.Background()

			registration := &models.OIDCConfig{ID: uuid.New()}
			existing, err := oidcRepo.GetByProvider(ctx, provider)
			switch {
			case err == nil:
				registration = existing
			case !errors.Is(err, database.ErrNotFound):
				return fmt.Errorf("failed to read OIDC config: %w", err)
			}

			registration.Provider = provider
			registration.Issuer = issuer
			registration.ClientID = clientID
			registration.RedirectURI = redirectURI
			registration.Domain = optional(domain)
			registration.ClientSecret = optional(clientSecret)
			// Left empty, the API discovers the key set from the issuer.
			registration.JWKSUrl = optional(jwksURL)

			if err := oidcRepo.Upsert(ctx, registration); err != nil {
				return fmt.Errorf("failed to save OIDC config: %w", err)
			}
			if existing != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated OIDC configuration for provider: %s\n", provider)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created OIDC configuration for provider: %s\n", provider)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "OAuth2 domain (optional, e.g. a Cognito custom domain)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "JWKS URL (optional, discovered from the issuer when empty)")

	return cmd
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
