package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

func TestRedisStoreSave(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	sess := &Session{
		ID:          "sess-1",
		Chain:       domain.ChainEVM,
		Address:     "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ConnectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(sess)
	require.NoError(t, err)

	mock.ExpectSet(currentSessionKey, payload, time.Hour).SetVal("OK")

	require.NoError(t, store.Save(context.Background(), sess, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreLoad(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	sess := &Session{ID: "sess-1", Chain: domain.ChainDAG, Address: "dag1qzp4xholder77example000address123"}
	payload, err := json.Marshal(sess)
	require.NoError(t, err)

	mock.ExpectGet(currentSessionKey).SetVal(string(payload))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, domain.ChainDAG, got.Chain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreLoadMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectGet(currentSessionKey).RedisNil()

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreClear(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client)

	mock.ExpectDel(currentSessionKey).SetVal(1)

	require.NoError(t, store.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
