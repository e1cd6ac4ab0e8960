package service_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"todozen/internal/repository"
	"todozen/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "todozen.db"), discardLogger())
	require.NoError(t, err)
	store := repository.NewStore(db, time.Second, discardLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProfiles(store *repository.Store) *service.ProfileService {
	return service.NewProfileService(store).WithCost(bcrypt.MinCost)
}

// clock is a settable time source for services.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// 2025-10-14 is a Tuesday.
var tuesday = time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC)
