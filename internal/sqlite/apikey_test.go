package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/screenmark/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	require.NoError(t, repo.Create(ctx, "u1", "sk-test", "laptop"))
	require.ErrorIs(t, repo.Create(ctx, "u2", "sk-test", ""), repository.ErrConflict)
	require.ErrorIs(t, repo.Create(ctx, "", "sk-other", ""), repository.ErrInvalidInput)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT key_hash FROM api_keys`).Scan(&stored))
	require.Equal(t, HashKey("sk-test"), stored)
	require.NotEqual(t, "sk-test", stored)

	userID, err := repo.ResolveUser(ctx, "sk-test")
	require.NoError(t, err)
	require.Equal(t, "u1", userID)

	var touched int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM api_keys WHERE last_used IS NOT NULL`).Scan(&touched))
	require.Equal(t, 1, touched)

	_, err = repo.ResolveUser(ctx, "sk-wrong")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
