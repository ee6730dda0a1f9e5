package tokencmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium-saas/platform/go/auth"
)

// Command issues signed tokens for local development and smoke tests.
func Command() *cobra.Command {
	var (
		secret      string
		userID      string
		tenantID    string
		permissions []string
		ttl         time.Duration
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			codec := auth.NewCodec(auth.CodecConfig{Secret: []byte(secret)})

			token, err := codec.Issue(userID, tenantID, permissions, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			fmt.Println(token)
			return nil
		},
	}

	c.Flags().StringVar(&secret, "secret", "", "signing secret, must match the API server")
	c.Flags().StringVar(&userID, "user", "dev", "subject user id")
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id claim")
	c.Flags().StringSliceVar(&permissions, "permissions", []string{"users:read", "users:write"}, "permission claims")
	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = c.MarkFlagRequired("secret")
	_ = c.MarkFlagRequired("tenant")
	return c
}
