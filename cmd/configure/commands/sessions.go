package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-forms/internal/sessionclient"
	"github.com/spf13/cobra"
)

// NewSessionsCmd creates the session administration command
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Revoke sessions and check sign-in against a running server",
	}
	cmd.AddCommand(newSessionsRevokeCmd(), newSessionsRestoreCmd(), newSessionsCheckCmd())
	return cmd
}

func newSessionsRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <email>",
		Short: "Sign a user out everywhere",
		Long:  "Invalidate every session issued to the user up to now. New sign-ins after this second are unaffected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackends(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			user, err := b.users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return lookupError(args[0], err)
			}
			if err := b.denylist.Revoke(cmd.Context(), user.ID.String(), time.Now()); err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Revoked all sessions of %s\n", user.Email)
			return nil
		},
	}
}

func newSessionsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <email>",
		Short: "Lift a revocation so unexpired sessions work again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackends(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			user, err := b.users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return lookupError(args[0], err)
			}
			if err := b.denylist.Clear(cmd.Context(), user.ID.String()); err != nil {
				return fmt.Errorf("failed to lift revocation: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Lifted session revocation for %s\n", user.Email)
			return nil
		},
	}
}

func newSessionsCheckCmd() *cobra.Command {
	var baseURL, email, pw string
	var pwStdin, keep bool
	var attempts int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Sign in against a running server and confirm the session is readable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			secret, err := readPassword(pw, pwStdin, cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, err := sessionclient.NewClient(baseURL,
				sessionclient.WithVerifierOptions(sessionclient.WithMaxAttempts(attempts)),
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signing in to %s as %s\n", baseURL, email)
			user, err := client.Login(cmd.Context(), email, secret)
			if err != nil {
				if errors.Is(err, sessionclient.ErrInvalidCredentials) {
					return fmt.Errorf("server rejected the credentials")
				}
				return fmt.Errorf("sign-in check failed: %w", err)
			}
			fmt.Fprintf(out, "✓ Session established for %s (%s)\n", user.Email, user.ID)

			if keep {
				return nil
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("sign-out failed: %w", err)
			}
			state, err := client.Session(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read session after sign-out: %w", err)
			}
			if state.Authenticated {
				return fmt.Errorf("session still authenticated after sign-out")
			}
			fmt.Fprintln(out, "✓ Sign-out cleared the session")
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&email, "email", "", "Email to sign in with (required)")
	cmd.Flags().StringVar(&pw, "password", "", "Password; prefer --password-stdin")
	cmd.Flags().BoolVar(&pwStdin, "password-stdin", false, "Read the password from the first line of stdin")
	cmd.Flags().BoolVar(&keep, "keep", false, "Skip the sign-out step")
	cmd.Flags().IntVar(&attempts, "attempts", 3, "Session read attempts after sign-in")

	return cmd
}
