package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sedaguven/davon-library-system/internal/account"
	"github.com/sedaguven/davon-library-system/internal/dashboard"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

func (e *Env) loginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your library account",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			if email == "" {
				var err error
				if email, err = e.readLine(cmd, "Email: "); err != nil {
					return err
				}
			}
			if email == "" {
				return errors.New("email is required")
			}
			password, err := e.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			identity, err := acc.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", identity.Name, identity.Role)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (e *Env) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			if err := acc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func (e *Env) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if errors.Is(err, workflow.ErrNotAuthenticated) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s)\n", identity.Name, identity.Email, identity.Role)
			return nil
		}),
	}
}

func (e *Env) booksCommand() *cobra.Command {
	page := gateway.DefaultPage
	var (
		filter      gateway.CatalogFilter
		available   bool
		unavailable bool
	)
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List or search the catalog",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			switch {
			case available:
				filter.Availability = gateway.OnlyAvailable
			case unavailable:
				filter.Availability = gateway.OnlyUnavailable
			}
			result, err := acc.Gateway.SearchBooks(cmd.Context(), filter, page)
			if err != nil {
				return err
			}
			printBooks(cmd.OutOrStdout(), result, page)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&page.Page, "page", "p", page.Page, "page number")
	cmd.Flags().IntVarP(&page.Limit, "limit", "n", page.Limit, "books per page")
	cmd.Flags().StringVar(&page.Sort, "sort", page.Sort, "sort field")
	cmd.Flags().StringVar(&page.Order, "order", page.Order, "sort order (asc or desc)")
	cmd.Flags().StringVarP(&filter.Query, "search", "s", "", "only books whose title or author contains this text")
	cmd.Flags().BoolVar(&available, "available", false, "only books that can be borrowed now")
	cmd.Flags().BoolVar(&unavailable, "unavailable", false, "only books that are out")
	cmd.MarkFlagsMutuallyExclusive("available", "unavailable")
	return cmd
}

func (e *Env) bookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "book <id>",
		Short: "Show a book and what you can do with it",
		Args:  cobra.ExactArgs(1),
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			view, err := acc.Workflow.View(cmd.Context(), bookID)
			if err != nil {
				return err
			}
			if view.Verdict.NotFound {
				return fmt.Errorf("book %d not found", bookID)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		}),
	}
}

func (e *Env) borrowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Borrow an available book",
		Args:  cobra.ExactArgs(1),
		RunE:  e.withAccount(circulate(workflow.ActionBorrow)),
	}
}

func (e *Env) reserveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <book-id>",
		Short: "Join the wait list of an unavailable book",
		Args:  cobra.ExactArgs(1),
		RunE:  e.withAccount(circulate(workflow.ActionReserve)),
	}
}

// circulate runs the book's single offered action if it is the requested one
func circulate(action workflow.Action) runner {
	return func(cmd *cobra.Command, acc *account.Account, args []string) error {
		bookID, err := parseID("book", args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		view, err := acc.Workflow.View(ctx, bookID)
		if err != nil {
			return err
		}
		if view.Verdict.NotFound {
			return fmt.Errorf("book %d not found", bookID)
		}
		if view.Action != action {
			return fmt.Errorf("cannot %s %q: %s", action, view.Book.Title, view.StatusLine())
		}

		outcome, err := acc.Workflow.Execute(ctx, &view)
		if err != nil {
			return err
		}
		if !outcome.Succeeded() {
			if outcome.Kind == workflow.OutcomeBorrowFailed {
				return fmt.Errorf("%s %w", outcome.Message, explain(outcome.Err))
			}
			return errors.New(outcome.Message)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, outcome.Message)
		if outcome.Kind == workflow.OutcomeBorrowSucceeded {
			if fresh, err := acc.Workflow.View(ctx, bookID); err == nil {
				view = fresh
			}
		}
		fmt.Fprintf(out, "Status: %s\n", view.StatusLine())
		return nil
	}
}

func (e *Env) cancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel one of your reservations",
		Args:  cobra.ExactArgs(1),
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			reservationID, err := parseID("reservation", args[0])
			if err != nil {
				return err
			}
			if err := acc.Workflow.CancelReservation(cmd.Context(), reservationID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reservation cancelled.")
			return nil
		}),
	}
}

func (e *Env) returnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			if err := acc.Workflow.ReturnLoan(cmd.Context(), loanID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book returned.")
			return nil
		}),
	}
}

func (e *Env) loansCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List your loans",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if err != nil {
				return err
			}
			printLoans(cmd.OutOrStdout(), acc.Gateway.ListLoansForUser(cmd.Context(), identity.ID), all)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include returned loans")
	return cmd
}

func (e *Env) reservationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reservations",
		Short: "List your active reservations",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if err != nil {
				return err
			}
			printReservations(cmd.OutOrStdout(), acc.Gateway.ListReservationsForUser(cmd.Context(), identity.ID))
			return nil
		}),
	}
}

func (e *Env) profileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your account summary",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if err != nil {
				return err
			}
			profile, err := acc.Dashboard.MemberProfile(cmd.Context(), identity)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		}),
	}
}

func (e *Env) dashboardCommand() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show library statistics (administrators only)",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if err != nil {
				return err
			}
			stats, err := acc.Dashboard.AdminStats(cmd.Context(), identity)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)

			actions, err := acc.JournalStats(cmd.Context(), time.Now().Add(-window))
			switch {
			case errors.Is(err, account.ErrNoJournal):
				return nil
			case err != nil:
				return err
			}
			printActionStats(cmd.OutOrStdout(), actions, window)
			return nil
		}),
	}
	cmd.Flags().DurationVar(&window, "since", account.StatsWindow, "how far back to count client actions")
	return cmd
}

func (e *Env) usersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List library accounts (administrators only)",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			identity, err := acc.Identity()
			if err != nil {
				return err
			}
			users, err := acc.Dashboard.Users(cmd.Context(), identity)
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		}),
	}
}

func (e *Env) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your last borrow, reserve, cancel and return commands",
		Args:  cobra.NoArgs,
		RunE: e.withAccount(func(cmd *cobra.Command, acc *account.Account, args []string) error {
			events, err := acc.History(cmd.Context())
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), events)
			return nil
		}),
	}
}

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id: %q", kind, arg)
	}
	return id, nil
}

// explain rewrites known failures as messages for the terminal
func explain(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, workflow.ErrNotAuthenticated):
		return errors.New("you are not logged in, run `libctl login` first")
	case errors.Is(err, dashboard.ErrForbidden):
		return errors.New("this command is for administrators only")
	case errors.Is(err, account.ErrNoJournal):
		return errors.New("history is not available without the action journal")
	case errors.Is(err, gateway.ErrTimeout):
		return errors.New("the library server did not respond in time")
	}

	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return errors.New(httpErr.Message)
	}
	var netErr *gateway.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Errorf("could not reach the library server: %w", netErr.Err)
	}
	return err
}
