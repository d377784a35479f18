package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Equal(t, code, codeUpper(code))

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func codeUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
	}
	return string(out)
}

func TestPickRandom(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e"}

	picks, err := PickRandom(pool, 3)
	require.NoError(t, err)
	assert.Len(t, picks, 3)

	seen := map[string]bool{}
	for _, p := range picks {
		assert.Contains(t, pool, p)
		assert.False(t, seen[p], "no duplicates")
		seen[p] = true
	}

	assert.Len(t, pool, 5, "pool untouched")

	_, err = PickRandom(pool, 6)
	require.Error(t, err)

	empty, err := PickRandom(pool, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 4; i++ {
		cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
	}
	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	// run broken, breaker still closed
	_, err = cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
