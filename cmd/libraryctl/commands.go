package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/database"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/utils"
)

// env carries the process dependencies so tests can swap them.
type env struct {
	openDB       func() (*sql.DB, int, error) // db plus bcrypt cost
	migrate      func(ctx context.Context, db *sql.DB) error
	readPassword func(fd int) ([]byte, error)
	isTerminal   func(fd int) bool
	stdin        io.Reader
}

func defaultEnv() env {
	return env{
		openDB: func() (*sql.DB, int, error) {
			cfg := config.LoadDBConfig()
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			return db, cfg.BcryptCost, err
		},
		migrate:      database.Migrate,
		readPassword: term.ReadPassword,
		isTerminal:   term.IsTerminal,
		stdin:        os.Stdin,
	}
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:          "libraryctl",
		Short:        "Operate the library service database",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(e), createAdminCmd(e), promoteCmd(e))
	return root
}

func migrateCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := e.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := e.migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func createAdminCmd(e env) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account (password read from the terminal)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			if username == "" || len(username) > model.MaxUsernameLen {
				return fmt.Errorf("username must be 1-%d characters", model.MaxUsernameLen)
			}
			password, err := promptPassword(cmd, e)
			if err != nil {
				return err
			}

			db, cost, err := e.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			hash, err := utils.HashPassword(password, cost)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			u, err := repository.NewUserRepo(db).Create(ctx, username, hash, model.RoleAdmin)
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("user %q already exists; use promote", username)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func promoteCmd(e env) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := e.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := repository.NewUserRepo(db).SetRole(ctx, strings.TrimSpace(username), model.RoleAdmin); err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return fmt.Errorf("user %q not found", username)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q is now an admin\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user to promote")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// promptPassword reads the password twice without echo on a terminal, or a
// single line from stdin when input is piped.
func promptPassword(cmd *cobra.Command, e env) (string, error) {
	fd := int(os.Stdin.Fd())
	if !e.isTerminal(fd) {
		line, err := bufio.NewReader(e.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return "", errors.New("empty password on stdin")
		}
		return pw, nil
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ")
	first, err := e.readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := e.readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if len(first) == 0 {
		return "", errors.New("empty password")
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
