package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ernie/altcheck/internal/auth"
	"github.com/ernie/altcheck/internal/storage"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

func cmdUser(args []string) {
	if len(args) < 1 {
		fatalf("user subcommand required: add, remove, list, reset, admin, perm")
	}

	subCmd := args[0]
	fs := flag.NewFlagSet("user "+subCmd, flag.ExitOnError)
	isAdmin := fs.Bool("admin", false, "create as admin user (add)")
	perms := fs.StringSlice("perm", nil, "permissions to grant (add)")
	cfg, remaining := loadConfig("user", args[1:], fs)

	ctx := context.Background()
	store := openStore(ctx, cfg)
	defer store.Close()

	var err error
	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, remaining, *isAdmin, *perms)
	case "remove":
		err = cmdUserRemove(ctx, store, remaining)
	case "list":
		err = cmdUserList(ctx, store)
	case "reset":
		err = cmdUserReset(ctx, store, remaining)
	case "admin":
		err = cmdUserAdmin(ctx, store, remaining)
	case "perm":
		err = cmdUserPerm(ctx, store, remaining)
	default:
		err = fmt.Errorf("unknown user command: %s (use: add, remove, list, reset, admin, perm)", subCmd)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

// readNewPassword prompts twice and enforces the minimum length
func readNewPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string, isAdmin bool, perms []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: altcheck user add [--admin] [--perm P,...] <username>")
	}
	username := args[0]

	if err := auth.ValidatePermissions(perms); err != nil {
		return err
	}

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	password, err := readNewPassword("Enter password: ")
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.CreateUser(ctx, username, hash, isAdmin, perms); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	roleStr := "user"
	if isAdmin {
		roleStr = "admin"
	}
	fmt.Printf("User '%s' created successfully (role: %s)\n", username, roleStr)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: altcheck user remove <username>")
	}
	username := args[0]

	if err := store.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	fmt.Printf("User '%s' removed\n", username)
	return nil
}

func cmdUserList(ctx context.Context, store *storage.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tPERMISSIONS\tPWD_CHANGE\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t----\t-----------\t----------\t----------")

	for _, user := range users {
		role := "user"
		if user.IsAdmin {
			role = "admin"
		}
		perms := "-"
		if len(user.Permissions) > 0 {
			perms = strings.Join(user.Permissions, ",")
		}
		pwdChange := "no"
		if user.PasswordChangeRequired {
			pwdChange = "yes"
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = user.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", user.Username, role, perms, pwdChange, lastLogin)
	}
	return w.Flush()
}

func cmdUserReset(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: altcheck user reset <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	password, err := readNewPassword("Enter new password: ")
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.ResetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	fmt.Printf("Password reset for '%s' (user will be required to change it on next login)\n", username)
	return nil
}

func cmdUserAdmin(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: altcheck user admin <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	newAdminStatus := !user.IsAdmin
	if err := store.UpdateUserAdmin(ctx, user.ID, newAdminStatus); err != nil {
		return fmt.Errorf("failed to update admin status: %w", err)
	}

	if newAdminStatus {
		fmt.Printf("User '%s' is now an admin\n", username)
	} else {
		fmt.Printf("User '%s' is no longer an admin\n", username)
	}
	return nil
}

func cmdUserPerm(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: altcheck user perm <username> [permission ...]")
	}
	username, perms := args[0], args[1:]

	if err := auth.ValidatePermissions(perms); err != nil {
		return err
	}

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	if err := store.UpdateUserPermissions(ctx, user.ID, perms); err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}

	if len(perms) == 0 {
		fmt.Printf("User '%s' now has no permissions\n", username)
	} else {
		fmt.Printf("User '%s' permissions: %s (takes effect on next login)\n", username, strings.Join(perms, ", "))
	}
	return nil
}
