package repository

import (
	"context"
	"errors"
	"fmt"
	"portfolio-api/internal/model"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoginAttemptRepository interface {
	// Get returns nil, nil when the address has no record.
	Get(ctx context.Context, ip string) (*model.LoginAttempt, error)
	// Update applies fn to the current record of ip, or to an empty one, and
	// stores the result. No other update of the same ip interleaves with it.
	Update(ctx context.Context, ip string, fn func(attempt *model.LoginAttempt)) (*model.LoginAttempt, error)
	Reset(ctx context.Context, ip string) error
}

type loginAttemptRepoImpl struct {
	db *gorm.DB
}

func NewLoginAttemptRepository(db *gorm.DB) LoginAttemptRepository {
	return &loginAttemptRepoImpl{db: db}
}

func (r *loginAttemptRepoImpl) Get(ctx context.Context, ip string) (*model.LoginAttempt, error) {
	var attempt model.LoginAttempt
	err := r.db.WithContext(ctx).
		Where("ip_address = ?", ip).
		First(&attempt).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (r *loginAttemptRepoImpl) Update(ctx context.Context, ip string, fn func(attempt *model.LoginAttempt)) (*model.LoginAttempt, error) {
	var attempt model.LoginAttempt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.LoginAttempt{IPAddress: ip, LastAttempt: time.Now()}).Error; err != nil {
			return fmt.Errorf("insert login attempt: %w", err)
		}

		// row lock; sqlite serializes writers instead
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ip_address = ?", ip).
			First(&attempt).Error; err != nil {
			return fmt.Errorf("lock login attempt: %w", err)
		}

		fn(&attempt)

		return tx.Model(&model.LoginAttempt{}).
			Where("ip_address = ?", ip).
			Updates(map[string]interface{}{
				"attempts":     attempt.Attempts,
				"last_attempt": attempt.LastAttempt,
				"locked_until": attempt.LockedUntil,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (r *loginAttemptRepoImpl) Reset(ctx context.Context, ip string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip_address"}},
			DoUpdates: clause.AssignmentColumns([]string{"attempts", "last_attempt", "locked_until"}),
		}).
		Create(&model.LoginAttempt{
			IPAddress:   ip,
			Attempts:    0,
			LastAttempt: time.Now(),
			LockedUntil: nil,
		}).Error
}

const (
	loginAttemptKeyPrefix = "login_attempts:"

	// optimistic transaction retries per update; each lost round means another
	// writer committed
	maxLoginAttemptRetries = 32
)

type redisLoginAttemptRepoImpl struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLoginAttemptRepository keeps attempt records as hashes that expire
// ttl after the last write.
func NewRedisLoginAttemptRepository(rdb *redis.Client, ttl time.Duration) LoginAttemptRepository {
	return &redisLoginAttemptRepoImpl{rdb: rdb, ttl: ttl}
}

func (r *redisLoginAttemptRepoImpl) key(ip string) string {
	return loginAttemptKeyPrefix + ip
}

func (r *redisLoginAttemptRepoImpl) Get(ctx context.Context, ip string) (*model.LoginAttempt, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(ip)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeLoginAttempt(ip, fields)
}

// Update runs fn inside a WATCH/MULTI transaction and retries when another
// writer touched the key first.
func (r *redisLoginAttemptRepoImpl) Update(ctx context.Context, ip string, fn func(attempt *model.LoginAttempt)) (*model.LoginAttempt, error) {
	key := r.key(ip)
	var attempt *model.LoginAttempt

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		attempt, err = decodeLoginAttempt(ip, fields)
		if err != nil {
			return err
		}

		fn(attempt)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, key, attempt)
			return nil
		})
		return err
	}

	for i := 0; i < maxLoginAttemptRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return attempt, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis update login attempt: %w", err)
	}
	return nil, fmt.Errorf("redis update login attempt: %w", redis.TxFailedErr)
}

func (r *redisLoginAttemptRepoImpl) write(ctx context.Context, pipe redis.Pipeliner, key string, attempt *model.LoginAttempt) {
	lockedUntil := ""
	ttl := r.ttl
	if attempt.LockedUntil != nil {
		lockedUntil = attempt.LockedUntil.UTC().Format(time.RFC3339Nano)
		if remaining := time.Until(*attempt.LockedUntil); remaining > ttl {
			ttl = remaining
		}
	}

	pipe.HSet(ctx, key,
		"attempts", attempt.Attempts,
		"last_attempt", attempt.LastAttempt.UTC().Format(time.RFC3339Nano),
		"locked_until", lockedUntil,
	)
	pipe.Expire(ctx, key, ttl)
}

func (r *redisLoginAttemptRepoImpl) Reset(ctx context.Context, ip string) error {
	if err := r.rdb.Del(ctx, r.key(ip)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// decodeLoginAttempt maps a stored hash to a record. An empty hash yields a
// zero record for ip.
func decodeLoginAttempt(ip string, fields map[string]string) (*model.LoginAttempt, error) {
	attempt := &model.LoginAttempt{IPAddress: ip}
	if len(fields) == 0 {
		return attempt, nil
	}

	var err error
	if attempt.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("parse attempts: %w", err)
	}
	if v := fields["last_attempt"]; v != "" {
		if attempt.LastAttempt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("parse last_attempt: %w", err)
		}
	}
	if v := fields["locked_until"]; v != "" {
		lockedUntil, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parse locked_until: %w", err)
		}
		attempt.LockedUntil = &lockedUntil
	}

	return attempt, nil
}
