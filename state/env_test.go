package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simp-lee/epubview/config"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	require.NotNil(t, env)
	assert.False(t, env.start.IsZero())
}

func TestEnvFromContext_Missing(t *testing.T) {
	assert.Panics(t, func() { EnvFromContext(context.Background()) })
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := &LocalEnv{start: time.Now().Add(-time.Second)}
	assert.GreaterOrEqual(t, env.Uptime(), time.Second)
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	env := &LocalEnv{Log: zaptest.NewLogger(t)}
	env.RedirectStdLog()
	assert.NotNil(t, env.restoreStdLog)
	env.RestoreStdLog()

	bare := &LocalEnv{}
	bare.RedirectStdLog()
	assert.Nil(t, bare.restoreStdLog)
	bare.RestoreStdLog()
}

func TestLocalEnv_LibraryRequiresConfig(t *testing.T) {
	_, err := (&LocalEnv{}).Library()
	assert.Error(t, err)
}

func TestLocalEnv_Library(t *testing.T) {
	cfg := config.Default()
	cfg.Library.Database = filepath.Join(t.TempDir(), "lib.db")
	env := &LocalEnv{Cfg: cfg, Log: zaptest.NewLogger(t)}

	lib, err := env.Library()
	require.NoError(t, err)
	again, err := env.Library()
	require.NoError(t, err)
	assert.Same(t, lib, again)

	books, err := lib.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)

	require.NoError(t, env.Close())
	assert.Nil(t, env.store)
	assert.NoError(t, env.Close(), "Close is idempotent")
}

func TestLocalEnv_CloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	env := &LocalEnv{CloseLog: func() error { return boom }}
	err := env.Close()
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, env.CloseLog)
}
