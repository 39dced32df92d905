package redemption

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "redemptions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite(t *testing.T) {
	runStoreTests(t, func(t *testing.T) paywall.RedemptionStore {
		return newTestSQLite(t)
	})
}

func TestNewSQLite_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "redemptions.db")

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "redemptions.db")
	ctx := context.Background()

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	_, claimed, err := s.Claim(ctx, newRedemption("sig1", "tok_1"))
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.Close())

	s, err = NewSQLite(dbPath)
	require.NoError(t, err)
	defer s.Close()

	rec, claimed, err := s.Claim(ctx, newRedemption("sig1", "tok_2"))
	require.NoError(t, err)
	assert.False(t, claimed, "a reference redeemed before restart stays redeemed")
	assert.Equal(t, "tok_1", rec.Token)
}
