package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/availability"
	"github.com/sedaguven/davon-library-system/internal/dashboard"
	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
	"github.com/sedaguven/davon-library-system/internal/session"
	"github.com/sedaguven/davon-library-system/internal/storage"
	"github.com/sedaguven/davon-library-system/internal/workflow"
)

// HistoryLimit is the number of journal entries History returns
const HistoryLimit = 10

// StatsWindow is how far back JournalStats looks by default
const StatsWindow = 7 * 24 * time.Hour

var ErrNoJournal = errors.New("action journal is not configured")

// Account is one signed-in (or anonymous) user of the library client:
// a session store and everything that acts on its behalf
type Account struct {
	Session   *session.Store
	Gateway   *gateway.Client
	Workflow  *workflow.Workflow
	Dashboard *dashboard.Service

	journal storage.Storage
	logger  *zap.Logger
}

// Open builds an account over base and restores its saved session.
// journal may be nil.
func Open(ctx context.Context, base *gateway.Client, creds session.CredentialStore, journal storage.Storage, logger *zap.Logger) *Account {
	store := session.NewStore(creds, base, logger)
	client := base.WithTokenSource(store)

	var recorder workflow.Journal
	if journal != nil {
		recorder = journal
	}

	a := &Account{
		Session:   store,
		Gateway:   client,
		Workflow:  workflow.New(store, availability.NewReconciler(client, logger), client, recorder, logger),
		Dashboard: dashboard.NewService(client, logger),
		journal:   journal,
		logger:    logger,
	}

	snap := store.Restore(ctx)
	logger.Debug("Session restored", zap.Stringer("state", snap.State))
	return a
}

// Login authenticates against the backend and makes the result the current identity
func (a *Account) Login(ctx context.Context, email, password string) (models.Identity, error) {
	result, err := a.Gateway.Login(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	if err := a.Session.Login(ctx, result.Identity, result.Token); err != nil {
		return models.Identity{}, fmt.Errorf("failed to save session: %w", err)
	}
	a.logger.Info("User logged in",
		zap.Int64("user_id", result.Identity.ID),
		zap.String("role", string(result.Identity.Role)),
	)
	return result.Identity, nil
}

// Logout clears the session
func (a *Account) Logout(ctx context.Context) error {
	return a.Session.Logout(ctx)
}

// Identity returns the current identity, or an error when nobody is signed in
func (a *Account) Identity() (*models.Identity, error) {
	snap := a.Session.Current()
	switch {
	case snap.State == session.StateLoading:
		return nil, workflow.ErrSessionLoading
	case !snap.Authenticated():
		return nil, workflow.ErrNotAuthenticated
	}
	return snap.Identity, nil
}

// History returns the latest journaled commands of the current user, newest first
func (a *Account) History(ctx context.Context) ([]models.ActionEvent, error) {
	identity, err := a.Identity()
	if err != nil {
		return nil, err
	}
	if a.journal == nil {
		return nil, ErrNoJournal
	}
	events, err := a.journal.LastActions(ctx, identity.ID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return events, nil
}

// JournalStats counts journaled commands of all users since the given time.
// Only admins may read it.
func (a *Account) JournalStats(ctx context.Context, since time.Time) ([]models.ActionStat, error) {
	identity, err := a.Identity()
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		return nil, dashboard.ErrForbidden
	}
	if a.journal == nil {
		return nil, ErrNoJournal
	}
	stats, err := a.journal.ActionStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read action stats: %w", err)
	}
	return stats, nil
}
