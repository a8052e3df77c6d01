package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sedaguven/davon-library-system/internal/gateway"
	"github.com/sedaguven/davon-library-system/internal/models"
)

// State is the lifecycle state of a Store
type State int

const (
	// StateLoading means the identity is not known yet. It is not anonymous.
	StateLoading State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is a consistent view of the store at one point in time
type Snapshot struct {
	State    State
	Identity *models.Identity
}

// Authenticated reports whether the snapshot carries an identity
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Identity != nil
}

// Anonymous reports whether the store definitively has no user
func (s Snapshot) Anonymous() bool {
	return s.State == StateAnonymous
}

// ProfileFetcher resolves the identity behind a bearer token
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (models.Identity, error)
}

// Store holds the current identity of one client session
type Store struct {
	mu       sync.RWMutex
	state    State
	identity *models.Identity
	token    string
	// generation increases on every state change; Restore uses it to drop
	// results that were overtaken by Login or Logout.
	generation uint64
	settled    chan struct{}

	subMu       sync.Mutex
	subscribers map[int]chan Snapshot
	nextSub     int

	creds    CredentialStore
	profiles ProfileFetcher
	logger   *zap.Logger
}

// NewStore creates a store in the loading state. Call Restore to settle it.
func NewStore(creds CredentialStore, profiles ProfileFetcher, logger *zap.Logger) *Store {
	return &Store{
		state:       StateLoading,
		settled:     make(chan struct{}),
		subscribers: make(map[int]chan Snapshot),
		creds:       creds,
		profiles:    profiles,
		logger:      logger,
	}
}

// Current returns the cached state without touching the network
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Token returns the bearer token of the current session, or "" when anonymous
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login persists the credentials and makes identity current
func (s *Store) Login(ctx context.Context, identity models.Identity, token string) error {
	if token == "" {
		return fmt.Errorf("login: empty token")
	}
	id := identity
	if err := s.creds.Save(ctx, Credentials{Token: token, Identity: &id}); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	s.set(StateAuthenticated, &id, token)
	s.logger.Info("Session authenticated",
		zap.Int64("user_id", id.ID),
		zap.String("role", string(id.Role)),
	)
	return nil
}

// Logout clears the durable credentials and the current identity.
// The in-memory state becomes anonymous even when clearing storage fails.
func (s *Store) Logout(ctx context.Context) error {
	s.set(StateAnonymous, nil, "")
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	s.logger.Info("Session cleared")
	return nil
}

// Restore settles a cold-started store from durable storage.
// A cached identity is trusted without a network call; a bare token is
// resolved through the profile endpoint and dropped when that fails.
func (s *Store) Restore(ctx context.Context) Snapshot {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	creds, err := s.creds.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to load stored credentials", zap.Error(err))
		return s.settle(gen, StateAnonymous, nil, "")
	}
	if creds.Token == "" {
		return s.settle(gen, StateAnonymous, nil, "")
	}
	if creds.Identity != nil {
		return s.settle(gen, StateAuthenticated, creds.Identity, creds.Token)
	}

	if s.profiles == nil {
		return s.settle(gen, StateAnonymous, nil, "")
	}
	identity, err := s.profiles.FetchProfile(ctx, creds.Token)
	if err != nil {
		if s.overtaken(gen) {
			return s.Current()
		}
		// an unreachable backend says nothing about the token, keep it for the next start
		var netErr *gateway.NetworkError
		if errors.As(err, &netErr) {
			s.logger.Warn("Could not resolve stored session, continuing anonymously", zap.Error(err))
			return s.settle(gen, StateAnonymous, nil, "")
		}
		s.logger.Warn("Stored token rejected, clearing session", zap.Error(err))
		if cerr := s.creds.Clear(ctx); cerr != nil {
			s.logger.Error("Failed to clear stored credentials", zap.Error(cerr))
		}
		return s.settle(gen, StateAnonymous, nil, "")
	}

	if s.overtaken(gen) {
		return s.Current()
	}
	if err := s.creds.Save(ctx, Credentials{Token: creds.Token, Identity: &identity}); err != nil {
		s.logger.Warn("Failed to cache resolved identity", zap.Error(err))
	}
	return s.settle(gen, StateAuthenticated, &identity, creds.Token)
}

// overtaken reports whether Login or Logout ran since generation gen
func (s *Store) overtaken(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation != gen
}

// Wait blocks until the store leaves the loading state
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	settled := s.settled
	s.mu.RUnlock()

	select {
	case <-settled:
		return s.Current(), nil
	case <-ctx.Done():
		return Snapshot{State: StateLoading}, ctx.Err()
	}
}

// Subscribe returns a channel receiving the latest snapshot after each change.
// Slow readers only see the most recent snapshot. Call cancel to stop.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// settle applies a Restore result unless a Login or Logout happened meanwhile
func (s *Store) settle(gen uint64, state State, identity *models.Identity, token string) Snapshot {
	s.mu.Lock()
	if s.generation != gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	snap := s.applyLocked(state, identity, token)
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

func (s *Store) set(state State, identity *models.Identity, token string) {
	s.mu.Lock()
	snap := s.applyLocked(state, identity, token)
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) applyLocked(state State, identity *models.Identity, token string) Snapshot {
	s.state = state
	s.identity = identity
	s.token = token
	s.generation++
	if state != StateLoading {
		select {
		case <-s.settled:
		default:
			close(s.settled)
		}
	}
	return s.snapshotLocked()
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		// drop the stale pending snapshot, keep the newest
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
