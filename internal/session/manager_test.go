package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/events"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

const (
	evmAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	dagAddress = "dag1qzp4xholder77example000address123"
)

type memoryStore struct {
	sess *Session
}

func (s *memoryStore) Save(_ context.Context, sess *Session, _ time.Duration) error {
	s.sess = sess
	return nil
}

func (s *memoryStore) Load(_ context.Context) (*Session, error) {
	return s.sess, nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.sess = nil
	return nil
}

func newTestManager(t *testing.T) (*Manager, *TokenManager, *[]events.Event) {
	t.Helper()

	dispatcher := events.NewInMemoryDispatcher()
	published := &[]events.Event{}
	dispatcher.Subscribe(events.EventSessionChanged, func(_ context.Context, e events.Event) error {
		*published = append(*published, e)
		return nil
	})

	tokens := NewTokenManager("test-secret", 60)
	m := NewManager(&memoryStore{}, tokens, dispatcher, zap.NewNop(), 60)
	return m, tokens, published
}

func TestConnectIssuesValidToken(t *testing.T) {
	m, tokens, _ := newTestManager(t)

	sess, token, err := m.Connect(context.Background(), domain.ChainEVM, evmAddress)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, evmAddress, sess.Address)

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, claims.SessionID)
	assert.Equal(t, domain.ChainEVM, claims.Chain)

	got, err := m.Validate(claims)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestConnectNormalizesAddress(t *testing.T) {
	m, _, _ := newTestManager(t)

	sess, _, err := m.Connect(context.Background(), domain.ChainEVM, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, evmAddress, sess.Address)
}

func TestConnectRejectsInvalidInput(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, _, err := m.Connect(context.Background(), domain.Chain("SOLANA"), evmAddress)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, _, err = m.Connect(context.Background(), domain.ChainEVM, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestChainSwitchInvalidatesOldToken(t *testing.T) {
	m, tokens, published := newTestManager(t)

	_, evmToken, err := m.Connect(context.Background(), domain.ChainEVM, evmAddress)
	require.NoError(t, err)

	dagSess, _, err := m.Connect(context.Background(), domain.ChainDAG, dagAddress)
	require.NoError(t, err)

	// The EVM token still parses but no longer matches the active session.
	claims, err := tokens.ParseToken(evmToken)
	require.NoError(t, err)
	_, err = m.Validate(claims)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionMismatch))

	assert.Equal(t, dagSess.ID, m.Current().ID)

	// One SessionChanged per connect, delivered before Connect returned.
	require.Len(t, *published, 2)
	payload := (*published)[1].Payload.(events.SessionChangedPayload)
	assert.Equal(t, domain.ChainDAG, payload.Chain)
	assert.Equal(t, dagAddress, payload.Address)
}

func TestDisconnect(t *testing.T) {
	m, tokens, published := newTestManager(t)

	_, token, err := m.Connect(context.Background(), domain.ChainEVM, evmAddress)
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background()))
	assert.Nil(t, m.Current())

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	_, err = m.Validate(claims)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionMismatch))

	// Disconnect publishes an empty-session change.
	require.Len(t, *published, 2)
	payload := (*published)[1].Payload.(events.SessionChangedPayload)
	assert.Empty(t, payload.Address)

	// Disconnecting twice is a no-op.
	require.NoError(t, m.Disconnect(context.Background()))
	assert.Len(t, *published, 2)
}

func TestHandleAccountChange(t *testing.T) {
	m, tokens, _ := newTestManager(t)

	_, token, err := m.Connect(context.Background(), domain.ChainDAG, dagAddress)
	require.NoError(t, err)

	require.NoError(t, m.HandleAccountChange(context.Background(), "dag1newwalletaddress00example99zz"))
	assert.Equal(t, "dag1newwalletaddress00example99zz", m.Current().Address)
	assert.Equal(t, domain.ChainDAG, m.Current().Chain)

	// Tokens minted for the previous account are stale.
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	_, err = m.Validate(claims)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionMismatch))
}

func TestHandleAccountChangeWithoutSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.HandleAccountChange(context.Background(), dagAddress)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePreconditionViolation))
}

func TestManagerRestoresPersistedSession(t *testing.T) {
	store := &memoryStore{sess: &Session{ID: "sess-restored", Chain: domain.ChainEVM, Address: evmAddress}}
	m := NewManager(store, NewTokenManager("test-secret", 60), events.NewInMemoryDispatcher(), zap.NewNop(), 60)

	require.NotNil(t, m.Current())
	assert.Equal(t, "sess-restored", m.Current().ID)
}
