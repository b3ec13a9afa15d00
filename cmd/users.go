package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage portal accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create a portal account.

Examples:
  # Administrator with a password
  uniportal users create --email dean@uni.edu --name "Dean" --role ADMIN --password s3cret

  # Student who will only use face login after enrollment by an administrator
  uniportal users create --email jan@uni.edu --name "Jan Novak"`,
	RunE: runUsersCreate,
}

var usersDisableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable an account; face and password login are rejected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserDisabled(args[0], true)
	},
}

var usersEnableCmd = &cobra.Command{
	Use:   "enable <email>",
	Short: "Re-enable a disabled account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserDisabled(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd, usersDisableCmd, usersEnableCmd)

	usersCreateCmd.Flags().String("email", "", "Login email (required)")
	usersCreateCmd.Flags().String("name", "", "Full name")
	usersCreateCmd.Flags().String("role", string(database.RoleStudent), "Role: ADMIN or STUDENT")
	usersCreateCmd.Flags().String("password", "", "Password; empty creates a face-only account")
	_ = usersCreateCmd.MarkFlagRequired("email")
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	role, ok := database.ParseRole(mustGetString(cmd, "role"))
	if !ok {
		return fmt.Errorf("unknown role %q", mustGetString(cmd, "role"))
	}

	user := &database.User{
		Email:    mustGetString(cmd, "email"),
		FullName: mustGetString(cmd, "name"),
		Role:     role,
	}
	if password := mustGetString(cmd, "password"); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		user.HashedPassword = string(hash)
	}

	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	users, err := database.GetUserWriter(ctx)
	if err != nil {
		return err
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return fmt.Errorf("an account with email %s already exists", user.Email)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Printf("Created %s account %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func setUserDisabled(email string, disabled bool) error {
	cfg := config.Load()
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	users, err := database.GetUserWriter(ctx)
	if err != nil {
		return err
	}
	user, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}
	if err := users.SetDisabled(ctx, user.ID, disabled); err != nil {
		return fmt.Errorf("updating %s: %w", email, err)
	}

	state := "enabled"
	if disabled {
		state = "disabled"
	}
	fmt.Printf("Account %s %s\n", user.Email, state)
	return nil
}
