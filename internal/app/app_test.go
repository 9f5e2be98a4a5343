package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/jobportal/internal/config"
	"github.com/khrees2412/jobportal/internal/database"
	"github.com/khrees2412/jobportal/internal/session"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestBuildWithSQLiteStore(t *testing.T) {
	cfg := loadConfig(t)
	a, err := Build(context.Background(), cfg, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer a.Close()

	_, isRepo := a.Store.(*database.Repository)
	assert.True(t, isRepo)
	assert.NotNil(t, a.Jobs)
	assert.NotNil(t, a.CVAnalyzer)
	assert.NotNil(t, a.Faces)
	assert.NotNil(t, a.Quizzes)
	require.NotNil(t, a.Issuer, "default config carries a generated secret")

	token, err := a.Issuer.Issue(session.Record{JobID: 1, CVScore: 80})
	require.NoError(t, err)
	rec, err := a.Issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, 80, rec.CVScore)
}

func TestBuildWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t)
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = mr.Addr()

	a, err := Build(context.Background(), cfg, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer a.Close()

	_, isRedis := a.Store.(*session.RedisStore)
	assert.True(t, isRedis)
}

func TestBuildFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := loadConfig(t)
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = addr

	_, err := Build(context.Background(), cfg, filepath.Join(t.TempDir(), "test.db"))
	assert.Error(t, err)
}

func TestSignInHandoff(t *testing.T) {
	cfg := loadConfig(t)
	a, err := Build(context.Background(), cfg, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.SignIn().RequireSignIn(ctx, "/apply/42"))

	path, err := a.Store.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/apply/42", path)

	path, err = a.Store.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Empty(t, path, "redirect is consumed once")
}

func TestAppContext(t *testing.T) {
	a := &App{}
	ctx := SetAppInContext(context.Background(), a)
	assert.Same(t, a, GetAppFromContext(ctx))
	assert.Nil(t, GetAppFromContext(context.Background()))
}
