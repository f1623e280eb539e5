package repository

import (
	"portfolio-api/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginAttemptRepos(t *testing.T) map[string]LoginAttemptRepository {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]LoginAttemptRepository{
		"gorm":  NewLoginAttemptRepository(newTestDB(t)),
		"redis": NewRedisLoginAttemptRepository(rdb, time.Hour),
	}
}

func TestLoginAttemptRepository(t *testing.T) {
	for name, repo := range loginAttemptRepos(t) {
		t.Run(name, func(t *testing.T) {
			got, err := repo.Get(ctx(), "10.0.0.1")
			require.NoError(t, err)
			assert.Nil(t, got)

			lockedUntil := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
			saved, err := repo.Update(ctx(), "10.0.0.1", func(a *model.LoginAttempt) {
				assert.Zero(t, a.Attempts)
				a.Attempts = 5
				a.LastAttempt = time.Now()
				a.LockedUntil = &lockedUntil
			})
			require.NoError(t, err)
			assert.Equal(t, "10.0.0.1", saved.IPAddress)

			got, err = repo.Get(ctx(), "10.0.0.1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 5, got.Attempts)
			require.NotNil(t, got.LockedUntil)
			assert.True(t, lockedUntil.Equal(*got.LockedUntil))
			assert.True(t, got.LockedAt(time.Now()))

			_, err = repo.Update(ctx(), "10.0.0.1", func(a *model.LoginAttempt) {
				assert.Equal(t, 5, a.Attempts)
				a.Attempts++
				a.LockedUntil = nil
			})
			require.NoError(t, err)
			got, err = repo.Get(ctx(), "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, 6, got.Attempts)
			assert.Nil(t, got.LockedUntil)

			require.NoError(t, repo.Reset(ctx(), "10.0.0.1"))
			got, err = repo.Get(ctx(), "10.0.0.1")
			require.NoError(t, err)
			if got != nil {
				assert.Equal(t, 0, got.Attempts)
				assert.False(t, got.LockedAt(time.Now()))
			}
		})
	}
}

func TestRedisLoginAttemptRepository_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repo := NewRedisLoginAttemptRepository(rdb, time.Minute)
	_, err := repo.Update(ctx(), "10.0.0.2", func(a *model.LoginAttempt) {
		a.Attempts = 1
		a.LastAttempt = time.Now()
	})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	got, err := repo.Get(ctx(), "10.0.0.2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoginAttemptRepository_ConcurrentUpdates(t *testing.T) {
	for name, repo := range loginAttemptRepos(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 10

			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repo.Update(ctx(), "10.0.0.3", func(a *model.LoginAttempt) {
						a.Attempts++
						a.LastAttempt = time.Now()
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := repo.Get(ctx(), "10.0.0.3")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, workers, got.Attempts)
		})
	}
}
