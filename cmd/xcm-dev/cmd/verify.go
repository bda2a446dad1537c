package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcaliburmoon/xcm-dev/devhost/sessions"
)

func newVerifyTokenCmd(opts *rootOptions) *cobra.Command {
	var keyFile string
	verifyCmd := &cobra.Command{
		Use:   "verify-token [token]",
		Short: "Check a launch token issued to a served process",
		Long: `Check a launch token issued to a served process.

The token defaults to $XCM_DEV_TOKEN and the key to $XCM_DEV_KEY_FILE, so the command can be
run from inside a served process.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := os.Getenv(sessions.EnvToken)
			if len(args) == 1 {
				token = args[0]
			}
			if token == "" {
				return fmt.Errorf("no token given and %s is not set", sessions.EnvToken)
			}

			if keyFile == "" {
				keyFile = os.Getenv(sessions.EnvKeyFile)
			}
			if keyFile == "" {
				root, err := opts.projectRoot()
				if err != nil {
					return err
				}
				settings, err := opts.loadSettings(cmd.Flags(), root)
				if err != nil {
					return err
				}
				keyFile = settings.SessionKey
			}
			if _, err := os.Stat(keyFile); err != nil {
				return fmt.Errorf("signing key: %w", err)
			}

			m, err := sessions.NewManager(keyFile, 0)
			if err != nil {
				return err
			}
			claims, err := m.Verify(token)
			if err != nil {
				return err
			}

			fmt.Fprintf(opts.stdout, "Session: %s\n", claims.SessionID)
			fmt.Fprintf(opts.stdout, "Root:    %s\n", claims.Root)
			fmt.Fprintf(opts.stdout, "Port:    %d\n", claims.Port)
			if claims.ExpiresAt != nil {
				fmt.Fprintf(opts.stdout, "Expires: %s\n", claims.ExpiresAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
	verifyCmd.Flags().StringVar(&keyFile, "key", "", "Signing key file (default: $XCM_DEV_KEY_FILE or the configured key)")
	return verifyCmd
}
