package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"libmgmt/internal/util"
	"libmgmt/pkg/bulkcsv"
	"libmgmt/pkg/events"
	"libmgmt/pkg/store"
	"libmgmt/services/library/internal/app"
	"libmgmt/services/library/internal/config"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "libctl",
		Short:        "Operator tool for the library service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $LIBRARY_CONFIG or config.yaml)")
	root.AddCommand(
		newMigrateCmd(),
		newValidateCmd(),
		newImportCmd(&configPath),
		newCreateAdminCmd(&configPath),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			db, err := store.NewGormStore(dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "database-url", "", "database DSN (postgres:// or sqlite:<path>)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "validate --kind KIND FILE",
		Short: "Check an upload file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := bulkcsv.ParseKind(kindFlag)
			if !ok {
				return fmt.Errorf("unknown kind %q", kindFlag)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ok, reason := bulkcsv.Validate(kind, string(data))
			fmt.Fprintf(cmd.OutOrStdout(), "%v %s\n", ok, reason)
			if !ok {
				return fmt.Errorf("%s: %s", args[0], reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "books, categories, inventory or readers")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newImportCmd(configPath *string) *cobra.Command {
	var kindFlag, as string
	cmd := &cobra.Command{
		Use:   "import --kind KIND --as USERNAME FILE",
		Short: "Import an upload file in one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := bulkcsv.ParseKind(kindFlag)
			if !ok {
				return fmt.Errorf("unknown kind %q", kindFlag)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			core, db, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			actor, found, err := db.GetUserByUsername(ctx, as)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("user %q not found", as)
			}
			res, err := core.Import(ctx, actor, kind, args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s rows\n", res.Rows, res.Kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "books, categories, inventory or readers")
	cmd.Flags().StringVar(&as, "as", "", "staff username recorded as the operator")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func newCreateAdminCmd(configPath *string) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword(cmd, "Repeat password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
			core, db, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()
			reader, err := core.CreateAdmin(cmd.Context(), app.AccountInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (user #%d)\n", reader.User.Username, reader.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// openApp builds the application service from config. Sessions are local to
// the process and events go to the log.
func openApp(configPath string) (*app.App, *store.GormStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := util.InitLogger(cfg.LogLevel)
	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTLDuration(), store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	core, err := app.New(app.Config{
		Store:    db,
		Sessions: sessions,
		Events:   events.NewLogPublisher(logger),
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return core, db, nil
}
