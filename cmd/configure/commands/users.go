package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-forms/internal/database"
	"github.com/benvon/smart-forms/internal/models"
	"github.com/benvon/smart-forms/internal/validation"
	"github.com/spf13/cobra"
)

// NewUsersCmd creates the user administration command
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUsersCreateCmd(), newUsersShowCmd(), newUsersUpdateCmd(), newUsersDeleteCmd())
	return cmd
}

func newUsersCreateCmd() *cobra.Command {
	var email, pw, name string
	var pwStdin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with an email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readPassword(pw, pwStdin, cmd.InOrStdin())
			if err != nil {
				return err
			}

			req := validation.SignupRequest{Email: email, Password: secret}
			if name != "" {
				req.Name = &name
			}
			if err := validation.Validate.Struct(req); err != nil {
				return errors.New(validation.Describe(err))
			}
			req.Normalize()

			b, err := openBackends(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			hash, err := b.hasher.Hash(req.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user := &models.User{Email: req.Email, Name: req.Name, PasswordHash: hash}
			if err := b.users.Create(cmd.Context(), user); err != nil {
				if errors.Is(err, database.ErrEmailTaken) {
					return fmt.Errorf("an account with email %s already exists", req.Email)
				}
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&pw, "password", "", "Password; prefer --password-stdin")
	cmd.Flags().BoolVar(&pwStdin, "password-stdin", false, "Read the password from the first line of stdin")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUsersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show a user",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", user.ID)
			fmt.Fprintf(out, "Email:   %s\n", user.Email)
			fmt.Fprintf(out, "Name:    %s\n", valueOr(user.Name, "-"))
			fmt.Fprintf(out, "Image:   %s\n", valueOr(user.ImageURL, "-"))
			fmt.Fprintf(out, "Created: %s\n", user.CreatedAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func newUsersUpdateCmd() *cobra.Command {
	var name, image string

	cmd := &cobra.Command{
		Use:   "update <email>",
		Short: "Update a user's display name or image",
		Long:  "Update profile fields. Open sessions pick up the change on their next refresh.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update validation.ProfileUpdate
			if cmd.Flags().Changed("name") {
				clean := validation.SanitizeText(name)
				update.Name = &clean
			}
			if cmd.Flags().Changed("image") {
				update.ImageURL = &image
			}
			if update.Name == nil && update.ImageURL == nil {
				return fmt.Errorf("nothing to update: pass --name and/or --image")
			}
			if err := validation.Validate.Struct(update); err != nil {
				return errors.New(validation.Describe(err))
			}

			b, err := openBackends(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			user, err := b.users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return lookupError(args[0], err)
			}
			if err := b.users.UpdateProfile(cmd.Context(), user.ID, update.Name, update.ImageURL); err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated user %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&image, "image", "", "New avatar URL")

	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete a user and revoke their sessions",
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

			// Revoke first so a failed delete never leaves live sessions for a half-removed account
			if err := b.denylist.Revoke(cmd.Context(), user.ID.String(), time.Now()); err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
			if err := b.users.Delete(cmd.Context(), user.ID); err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s and revoked their sessions\n", user.Email)
			return nil
		},
	}
}

func lookupError(email string, err error) error {
	if errors.Is(err, database.ErrUserNotFound) {
		return fmt.Errorf("no user with email %s", email)
	}
	return fmt.Errorf("failed to look up user: %w", err)
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
