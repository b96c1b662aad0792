package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// Session is the single active wallet binding: one chain, one address.
type Session struct {
	ID          string       `json:"id"`
	Chain       domain.Chain `json:"chain"`
	Address     string       `json:"address"`
	ConnectedAt time.Time    `json:"connected_at"`
}

// Manager owns the one-active-session invariant. Connecting to chain B
// while chain A is active invalidates A's session; the SessionChanged event
// is published synchronously before Connect returns, so subscribers observe
// it before any further chain operation is accepted.
type Manager struct {
	mu         sync.Mutex
	store      Store
	tokens     *TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	ttl        time.Duration
	current    *Session
}

// NewManager constructs the manager and restores any persisted session.
func NewManager(store Store, tokens *TokenManager, dispatcher events.Dispatcher, logger *zap.Logger, ttlMinutes int) *Manager {
	if ttlMinutes <= 0 {
		ttlMinutes = 240
	}
	m := &Manager{
		store:      store,
		tokens:     tokens,
		dispatcher: dispatcher,
		logger:     logger,
		ttl:        time.Duration(ttlMinutes) * time.Minute,
	}
	if store != nil {
		if sess, err := store.Load(context.Background()); err == nil && sess != nil {
			m.current = sess
			logger.Info("restored wallet session",
				zap.String("chain", string(sess.Chain)),
				zap.String("address", sess.Address))
		}
	}
	return m
}

// Connect activates a session for the given chain and address, replacing
// any existing session. The returned token authenticates subsequent HTTP
// calls.
func (m *Manager) Connect(ctx context.Context, chain domain.Chain, address string) (*Session, string, error) {
	if !chain.Valid() {
		return nil, "", apperrors.NewValidationError("unknown chain", map[string]any{"chain": chain})
	}
	normalized, err := domain.NormalizeAddress(chain, address)
	if err != nil {
		return nil, "", apperrors.NewValidationError("invalid address", map[string]any{"reason": err.Error()})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current
	sess := &Session{
		ID:          uuid.NewString(),
		Chain:       chain,
		Address:     normalized,
		ConnectedAt: time.Now(),
	}
	if err := m.persist(ctx, sess); err != nil {
		return nil, "", apperrors.NewStoreError(err)
	}
	m.current = sess

	if prev != nil && prev.Chain != chain {
		m.logger.Info("chain switch invalidated previous session",
			zap.String("previous_chain", string(prev.Chain)),
			zap.String("new_chain", string(chain)))
	}
	m.publishChanged(ctx, sess)

	token, _, err := m.tokens.GenerateToken(sess)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	return sess, token, nil
}

// Disconnect clears the active session.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	if m.store != nil {
		if err := m.store.Clear(ctx); err != nil {
			return apperrors.NewStoreError(err)
		}
	}
	m.current = nil
	m.publishChanged(ctx, nil)
	return nil
}

// Current returns the active session, or nil when none is connected.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Validate checks that the presented claims still describe the active
// session; tokens minted before a chain switch fail here.
func (m *Manager) Validate(claims *Claims) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.ID != claims.SessionID {
		return nil, apperrors.NewSessionMismatch("session no longer active")
	}
	return m.current, nil
}

// HandleAccountChange reacts to an external wallet account switch by
// rebinding the active session to the new address on the same chain.
func (m *Manager) HandleAccountChange(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return apperrors.NewPreconditionViolation("no active session", nil)
	}
	normalized, err := domain.NormalizeAddress(m.current.Chain, address)
	if err != nil {
		return apperrors.NewValidationError("invalid address", map[string]any{"reason": err.Error()})
	}

	sess := &Session{
		ID:          uuid.NewString(),
		Chain:       m.current.Chain,
		Address:     normalized,
		ConnectedAt: time.Now(),
	}
	if err := m.persist(ctx, sess); err != nil {
		return apperrors.NewStoreError(err)
	}
	m.current = sess
	m.publishChanged(ctx, sess)
	return nil
}

func (m *Manager) persist(ctx context.Context, sess *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, sess, m.ttl)
}

func (m *Manager) publishChanged(ctx context.Context, sess *Session) {
	if m.dispatcher == nil {
		return
	}
	payload := events.SessionChangedPayload{}
	if sess != nil {
		payload.Chain = sess.Chain
		payload.Address = sess.Address
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSessionChanged,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
