package quotes

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/cotizador/internal/db"
	"github.com/Simplici0/cotizador/internal/migrations"
	"github.com/Simplici0/cotizador/internal/pricing"
	"github.com/Simplici0/cotizador/internal/seed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "quotes-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(database))
	_, err = seed.Run(context.Background(), database, pricing.DefaultPolicy())
	require.NoError(t, err)

	return NewStore(database)
}

func newTestService(t *testing.T, store *Store, persister Persister) *Service {
	t.Helper()

	svc, err := NewService(ServiceConfig{
		Store:         store,
		Persister:     persister,
		Logger:        zerolog.Nop(),
		DraftDebounce: 20 * time.Millisecond,
		Now:           func() time.Time { return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func ptr(v float64) *float64 { return &v }
