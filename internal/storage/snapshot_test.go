package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"twammEngine/internal/model"
	"twammEngine/internal/storage"
	"twammEngine/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state", "twamm.json"))
		require.NoError(t, err)
		return store
	})
}

func TestFileStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twamm.json")
	ctx := context.Background()
	quote := &model.OracleQuote{Account: common.HexToAddress("0x0a"), Price: 7, Exponent: -1, PublishTime: 3}

	store, err := storage.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error { return tx.SaveQuote(ctx, quote) }))
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	reopened, err := storage.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, reopened.View(ctx, func(tx storage.Tx) error {
		got, err := tx.Quote(ctx, quote.Account)
		require.NoError(t, err)
		require.Equal(t, quote, got)
		return nil
	}))
}

func TestFileStoreRejectsDirectory(t *testing.T) {
	_, err := storage.NewFileStore(t.TempDir())
	require.Error(t, err)
}

func TestViewIsReadOnly(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	err := store.View(ctx, func(tx storage.Tx) error {
		return tx.SaveQuote(ctx, &model.OracleQuote{})
	})
	require.Error(t, err)
}

func TestJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "transfers.jsonl")
	journal := storage.NewJournal(path)
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, nil))
	require.NoError(t, journal.Record(ctx, []model.TransferRecord{
		{Amount: 10, Reason: "deposit"},
		{ID: "fixed", Amount: 5, Reason: "withdraw"},
	}))
	require.NoError(t, journal.Record(ctx, []model.TransferRecord{{Amount: 1, Reason: "fee"}}))

	records, err := storage.ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.NotEmpty(t, records[0].ID)
	require.Equal(t, "fixed", records[1].ID)
	require.Equal(t, "fee", records[2].Reason)

	missing, err := storage.ReadJournal(filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	require.Empty(t, missing)
}
