package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/config"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/session"
	"github.com/sedaguven/davon-library-system/internal/storage"
	"github.com/sedaguven/davon-library-system/internal/storage/ch"
)

// DefaultProfile names the saved session used when --profile is not given
const DefaultProfile = "default"

// OpenFunc opens the account saved under a profile name
type OpenFunc func(ctx context.Context, profile string) (*account.Account, error)

// Env holds what the commands need from the outside world
type Env struct {
	Open OpenFunc
	// ReadPassword prompts for a password without echoing it
	ReadPassword func(prompt string) (string, error)

	profile string
	acc     *account.Account
	input   *bufio.Reader
}

// NewEnv wires the CLI to the configured backend, a SQLite session file and,
// unless USE_MOCK_DB is set, the ClickHouse action journal.
// The returned function releases everything NewEnv opened.
func NewEnv(cfg *config.Config, logger *zap.Logger) (*Env, func() error, error) {
	base, err := gateway.New(gateway.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout}, logger)
	if err != nil {
		return nil, nil, err
	}

	db, err := session.OpenSQLite(cfg.SessionDBPath)
	if err != nil {
		return nil, nil, err
	}

	var journal storage.Storage
	if !cfg.UseMockDB {
		clickhouseDB, err := ch.NewClickHouseDB(
			cfg.ClickHouseHost,
			cfg.ClickHousePort,
			cfg.ClickHouseDatabase,
			cfg.ClickHouseUser,
			cfg.ClickHousePassword,
			cfg.ClickHouseUseTLS,
		)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		if err := clickhouseDB.Initialize(context.Background()); err != nil {
			clickhouseDB.Close()
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize journal: %w", err)
		}
		journal = clickhouseDB
	}

	env := &Env{
		Open: func(ctx context.Context, profile string) (*account.Account, error) {
			creds := session.NewSQLiteCredentials(db, "cli:"+profile)
			return account.Open(ctx, base, creds, journal, logger), nil
		},
		ReadPassword: readPassword,
	}
	return env, closeAll(db, journal), nil
}

func closeAll(db *sql.DB, journal storage.Storage) func() error {
	return func() error {
		var errs []error
		if journal != nil {
			errs = append(errs, journal.Close())
		}
		errs = append(errs, db.Close())
		return errors.Join(errs...)
	}
}

// readPassword reads a password with masking when stdin is a terminal
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// account opens the profile's account once per process
func (e *Env) account(ctx context.Context) (*account.Account, error) {
	if e.acc != nil {
		return e.acc, nil
	}
	profile := e.profile
	if profile == "" {
		profile = DefaultProfile
	}
	acc, err := e.Open(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	e.acc = acc
	return acc, nil
}

// readLine reads one line of command input
func (e *Env) readLine(cmd *cobra.Command, prompt string) (string, error) {
	if e.input == nil {
		e.input = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := e.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// runner is a command body that acts on the opened account
type runner func(cmd *cobra.Command, acc *account.Account, args []string) error

// withAccount opens the account and turns errors into readable messages
func (e *Env) withAccount(run runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		acc, err := e.account(cmd.Context())
		if err != nil {
			return err
		}
		return explain(run(cmd, acc, args))
	}
}

// NewRootCommand builds the libctl command tree over env
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Browse the Davon library catalog and manage your loans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&env.profile, "profile", DefaultProfile, "saved session to use")

	root.AddCommand(
		env.loginCommand(),
		env.logoutCommand(),
		env.whoamiCommand(),
		env.booksCommand(),
		env.bookCommand(),
		env.borrowCommand(),
		env.reserveCommand(),
		env.cancelCommand(),
		env.returnCommand(),
		env.loansCommand(),
		env.reservationsCommand(),
		env.profileCommand(),
		env.dashboardCommand(),
		env.usersCommand(),
		env.historyCommand(),
	)
	return root
}
