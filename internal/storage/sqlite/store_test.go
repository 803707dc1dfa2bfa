package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/storage"
	"github.com/mcoot/chesschain-go/internal/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chesschain.db"))
	require.NoError(t, err)
	return store
}

func TestStoreContract(t *testing.T) {
	suite.Run(t, &storagetest.ContractSuite{
		NewStorage: func() storage.Storage { return openTestStore(t) },
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chesschain.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	fixture := storagetest.ArchivedFixture("session-1")
	require.NoError(t, store.SaveMoves(ctx, "session-1", fixture.Session.Moves))
	require.NoError(t, store.SaveCompletedSession(ctx, fixture))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FetchArchivedSession(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, got.Session.Moves, 2)
}

func TestCanceledContext(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FetchArchivedSession(ctx, "session-1")
	require.ErrorIs(t, err, context.Canceled)
}
