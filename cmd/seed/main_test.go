package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/store"
)

func TestRun_SeedsAndReusesWriters(t *testing.T) {
	st, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	defer st.Close()

	svc, err := newServices(st)
	require.NoError(t, err)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, svc, options{Writers: 3, Stories: 2, Seed: 42}, &out))
	assert.Contains(t, out.String(), "Writers ready: 3")

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 6, stats.Stories)

	out.Reset()
	require.NoError(t, run(ctx, svc, options{Writers: 3, Stories: 1, Seed: 7}, &out))
	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Users, "existing writers are reused")
	assert.Equal(t, 9, stats.Stories)

	res, err := svc.auth.Login(ctx, domain.Credentials{Email: "ada@example.com", Password: demoPassword})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lark", res.User.DisplayName)
}

func TestRandomDraft_IsValid(t *testing.T) {
	st, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	defer st.Close()
	svc, err := newServices(st)
	require.NoError(t, err)

	ctx := context.Background()
	w, err := ensureWriter(ctx, svc.auth, 9)
	require.NoError(t, err)
	assert.Equal(t, "bram2", w.Username)

	rng := newRand(1)
	for range 50 {
		_, err := svc.stories.Create(ctx, w, randomDraft(rng))
		require.NoError(t, err)
	}
}
