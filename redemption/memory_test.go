package redemption

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paywall "github.com/lalitcap23/pay-per-api"
)

// storeFactory lets the same behavior tests run against every backend
type storeFactory func(t *testing.T) paywall.RedemptionStore

func newRedemption(ref, token string) paywall.Redemption {
	return paywall.Redemption{
		Reference:  ref,
		Resource:   "jokes",
		Token:      token,
		Payer:      "payer",
		Amount:     100,
		Asset:      "mint",
		Registered: true,
		CreatedAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func runStoreTests(t *testing.T, factory storeFactory) {
	t.Run("claim once", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		rec, claimed, err := s.Claim(ctx, newRedemption("sig1", "tok_1"))
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.Equal(t, "tok_1", rec.Token)

		rec, claimed, err = s.Claim(ctx, newRedemption("sig1", "tok_2"))
		require.NoError(t, err)
		assert.False(t, claimed)
		assert.Equal(t, "tok_1", rec.Token, "existing record is returned")
		assert.Equal(t, "jokes", rec.Resource)
		assert.Equal(t, uint64(100), rec.Amount)
		assert.True(t, rec.CreatedAt.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	})

	t.Run("amount above int64 range", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		r := newRedemption("sig-big", "tok_big")
		r.Amount = math.MaxUint64
		_, claimed, err := s.Claim(ctx, r)
		require.NoError(t, err)
		require.True(t, claimed)

		rec, ok, err := s.FindByToken(ctx, "tok_big")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(math.MaxUint64), rec.Amount)
	})

	t.Run("find by token", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		_, _, err := s.Claim(ctx, newRedemption("sig1", "tok_1"))
		require.NoError(t, err)

		rec, ok, err := s.FindByToken(ctx, "tok_1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "sig1", rec.Reference)

		_, ok, err = s.FindByToken(ctx, "tok_missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("mark registered flips once", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		r := newRedemption("sig1", "tok_1")
		r.Registered = false
		_, _, err := s.Claim(ctx, r)
		require.NoError(t, err)

		flipped, err := s.MarkRegistered(ctx, "tok_1")
		require.NoError(t, err)
		assert.True(t, flipped)

		flipped, err = s.MarkRegistered(ctx, "tok_1")
		require.NoError(t, err)
		assert.False(t, flipped)

		flipped, err = s.MarkRegistered(ctx, "tok_missing")
		require.NoError(t, err)
		assert.False(t, flipped)

		rec, _, err := s.FindByToken(ctx, "tok_1")
		require.NoError(t, err)
		assert.True(t, rec.Registered)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, claimed, err := s.Claim(ctx, newRedemption("sig-race", fmt.Sprintf("tok_%d", i)))
				assert.NoError(t, err)
				if claimed {
					winners.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
	})
}

func TestMemory(t *testing.T) {
	runStoreTests(t, func(t *testing.T) paywall.RedemptionStore {
		return NewMemory()
	})
}

func TestMemory_Len(t *testing.T) {
	m := NewMemory()
	_, _, _ = m.Claim(context.Background(), newRedemption("a", "tok_a"))
	_, _, _ = m.Claim(context.Background(), newRedemption("a", "tok_b"))
	_, _, _ = m.Claim(context.Background(), newRedemption("b", "tok_c"))
	assert.Equal(t, 2, m.Len())
}
