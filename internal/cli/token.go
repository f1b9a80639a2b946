package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/config"
)

// NewTokenCommand creates the dev-token command, which signs a bearer token
// with the server's secret for local development.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "dev-token <subject>",
		Short: "Sign a development token for the records API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if opts.ConfigFile != "" {
				var err error
				if cfg, err = config.LoadFile(opts.ConfigFile); err != nil {
					return err
				}
			}
			token, err := auth.Sign(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, args[0],
				[]string{auth.ScopeRecordsRead, auth.ScopeRecordsWrite}, ttl)
			if err != nil {
				return err
			}
			p := &printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.emit(map[string]string{"token": token}, nil, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
