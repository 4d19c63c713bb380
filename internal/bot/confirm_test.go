package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm_PopRunsOnce(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	ran := 0
	cm.Push("user", "compra", func(ctx context.Context) { ran++ })

	run, summary, ok := cm.Pop("user", "")
	require.True(t, ok)
	assert.Equal(t, "compra", summary)
	run(context.Background())
	assert.Equal(t, 1, ran)

	_, _, ok = cm.Pop("user", "")
	assert.False(t, ok)
}

func TestConfirm_TokenMustMatchWhenGiven(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	token, _ := cm.Push("user", "compra", func(ctx context.Context) {})
	require.NotEmpty(t, token)

	// wrong reference leaves the action armed
	_, _, ok := cm.Pop("user", "nope")
	assert.False(t, ok)

	_, _, ok = cm.Pop("user", token)
	assert.True(t, ok)
}

func TestConfirm_TokensDifferAcrossPushes(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	first, _ := cm.Push("user", "primera", func(ctx context.Context) {})
	second, _ := cm.Push("user", "segunda", func(ctx context.Context) {})
	assert.NotEqual(t, first, second)

	// the stale reference no longer confirms anything
	_, _, ok := cm.Pop("user", first)
	assert.False(t, ok)

	_, summary, ok := cm.Pop("user", second)
	require.True(t, ok)
	assert.Equal(t, "segunda", summary)
}

func TestConfirm_ExpiredIsDropped(t *testing.T) {
	cm := NewConfirmManager(10 * time.Millisecond)
	defer cm.Close()

	cm.Push("user", "compra", func(ctx context.Context) {
		t.Fatal("expired action must not run")
	})

	time.Sleep(20 * time.Millisecond)

	_, _, ok := cm.Pop("user", "")
	assert.False(t, ok)
}

func TestConfirm_NewPushReplacesOld(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	var got string
	cm.Push("user", "primera", func(ctx context.Context) { got = "primera" })
	cm.Push("user", "segunda", func(ctx context.Context) { got = "segunda" })

	run, _, ok := cm.Pop("user", "")
	require.True(t, ok)
	run(context.Background())
	assert.Equal(t, "segunda", got)
}

func TestConfirm_CancelReturnsSummary(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	cm.Push("user", "2 × Estrella", func(ctx context.Context) {})

	summary, ok := cm.Cancel("user")
	require.True(t, ok)
	assert.Equal(t, "2 × Estrella", summary)

	_, ok = cm.Cancel("user")
	assert.False(t, ok)

	_, _, ok = cm.Pop("user", "")
	assert.False(t, ok)
}

func TestConfirm_PerUserIsolation(t *testing.T) {
	cm := NewConfirmManager(time.Minute)
	defer cm.Close()

	cm.Push("a", "compra", func(ctx context.Context) {})

	_, _, ok := cm.Pop("b", "")
	assert.False(t, ok)

	_, _, ok = cm.Pop("a", "")
	assert.True(t, ok)
}
