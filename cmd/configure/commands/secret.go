package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/benvon/smart-forms/internal/session"
	"github.com/spf13/cobra"
)

// NewSecretCmd creates the signing secret command
func NewSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Session signing secret helpers",
	}
	cmd.AddCommand(newSecretGenerateCmd())
	return cmd
}

func newSecretGenerateCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random value suitable for SESSION_SECRET",
		Long:  "Print a random value suitable for SESSION_SECRET. Rotating the secret signs every user out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := generateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 48, "Random bytes before encoding")

	return cmd
}

// generateSecret returns size random bytes, base64url encoded without padding
func generateSecret(size int) (string, error) {
	if size < session.MinSecretLength {
		return "", fmt.Errorf("--bytes must be at least %d", session.MinSecretLength)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
