package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ernie/arena/internal/auth"
	"github.com/ernie/arena/internal/storage"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

// cmdUser handles user subcommands against the local database
func cmdUser(args []string) {
	if len(args) < 1 {
		fatal("user subcommand required: add, remove, list, reset, admin")
	}
	subCmd := args[0]

	configPath, remaining := splitConfigFlag(args[1:])
	loadCLIConfigFromFlags(configPath, "")

	store, err := storage.New(dbPath)
	if err != nil {
		fatal("failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, remaining)
	case "remove":
		err = cmdUserRemove(ctx, store, remaining)
	case "list":
		err = cmdUserList(ctx, store)
	case "reset":
		err = cmdUserReset(ctx, store, remaining)
	case "admin":
		err = cmdUserAdmin(ctx, store, remaining)
	default:
		err = fmt.Errorf("unknown user command: %s (use: add, remove, list, reset, admin)", subCmd)
	}
	if err != nil {
		store.Close()
		fatal("%v", err)
	}
}

// splitConfigFlag pulls --config out of args so subcommands only see
// their own flags
func splitConfigFlag(args []string) (string, []string) {
	path := defaultConfigPath
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			path = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			path = strings.TrimPrefix(args[i], "--config=")
		default:
			rest = append(rest, args[i])
		}
	}
	return path, rest
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	isAdmin := fs.Bool("admin", false, "create as admin user")
	playerFlag := fs.String("player", "", "link to a player UUID")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: arena user add [--admin] [--player UUID] <username>")
	}
	username := fs.Arg(0)

	var player *uuid.UUID
	if *playerFlag != "" {
		id, err := uuid.Parse(*playerFlag)
		if err != nil {
			return fmt.Errorf("invalid player UUID: %w", err)
		}
		player = &id
	}

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	hash, err := promptNewPassword("Enter password: ")
	if err != nil {
		return err
	}
	if err := store.CreateUser(ctx, username, hash, *isAdmin, player); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "user"
	if *isAdmin {
		role = "admin"
	}
	fmt.Printf("User '%s' created (role: %s)\n", username, role)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: arena user remove <username>")
	}
	if err := store.DeleteUser(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	fmt.Printf("User '%s' removed\n", args[0])
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
	fmt.Fprintln(w, "USERNAME\tROLE\tPLAYER\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t----\t------\t----------")
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		player := "-"
		if u.PlayerID != nil {
			player = u.PlayerID.String()
		}
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, role, player, lastLogin)
	}
	return w.Flush()
}

func cmdUserReset(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: arena user reset <username>")
	}
	user, err := store.GetUserByUsername(ctx, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	hash, err := promptNewPassword("Enter new password: ")
	if err != nil {
		return err
	}
	if err := store.ResetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	fmt.Printf("Password reset for '%s' (change required at next login)\n", user.Username)
	return nil
}

func cmdUserAdmin(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: arena user admin <username>")
	}
	user, err := store.GetUserByUsername(ctx, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}
	if err := store.UpdateUserAdmin(ctx, user.ID, !user.IsAdmin); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if user.IsAdmin {
		fmt.Printf("User '%s' is no longer an admin\n", user.Username)
	} else {
		fmt.Printf("User '%s' is now an admin\n", user.Username)
	}
	return nil
}

// promptNewPassword reads and confirms a password, returning its hash
func promptNewPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}

	hash, err := auth.HashPassword(string(password))
	if errors.Is(err, auth.ErrWeakPassword) {
		return "", errors.New("password must be at least 8 characters")
	}
	return hash, err
}
