package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/models"
)

// ContactStore resolves how a user can be reached. Lookups go through Redis
// first and fall back to Postgres.
type ContactStore struct {
	db     database.DBTX
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewContactStore(db database.DBTX, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *ContactStore {
	return &ContactStore{db: db, redis: rdb, ttl: ttl, logger: log}
}

func contactCacheKey(userID string) string {
	return "contact:" + userID
}

// Lookup returns nil without error when the user does not exist.
func (s *ContactStore) Lookup(ctx context.Context, userID string) (*models.Contact, error) {
	key := contactCacheKey(userID)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var c models.Contact
			if jsonErr := json.Unmarshal([]byte(cached), &c); jsonErr == nil {
				return &c, nil
			}
		} else if !stderrors.Is(err, redis.Nil) {
			s.logger.Warn("contact cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err,
			})
		}
	}

	var (
		c     models.Contact
		phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, phone FROM users WHERE id = $1`, userID).
		Scan(&c.UserID, &c.Name, &c.Email, &phone)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query contact: %w", err)
	}
	c.Phone = phone.String

	if s.redis != nil && s.ttl > 0 {
		if raw, err := json.Marshal(c); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("contact cache write failed", map[string]interface{}{
					"userId": userID,
					"error":  err,
				})
			}
		}
	}
	return &c, nil
}
