package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each record as a JSON string under
// "<prefix>:rt:<token>" and indexes tokens per user in the set
// "<prefix>:user:<userID>". Conditional writes use WATCH/MULTI; a write that
// loses the race surfaces as common.ErrConflict.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "tokenkeeper"
	}
	return &RedisRepository{redis: client, prefix: prefix}
}

type redisRecord struct {
	Token           string     `json:"token"`
	UserID          string     `json:"user_id"`
	CreatedOn       time.Time  `json:"created_on"`
	ExpiresOn       time.Time  `json:"expires_on"`
	CreatedByIP     string     `json:"created_by_ip"`
	RevokedOn       *time.Time `json:"revoked_on,omitempty"`
	RevokedByIP     string     `json:"revoked_by_ip,omitempty"`
	RevokedReason   string     `json:"revoked_reason,omitempty"`
	ReplacedByToken string     `json:"replaced_by_token,omitempty"`
}

func (s *RedisRepository) tokenKey(token string) string {
	return s.prefix + ":rt:" + token
}

func (s *RedisRepository) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func encode(t *models.RefreshToken) ([]byte, error) {
	return json.Marshal(redisRecord(*t))
}

func decode(data []byte) (*models.RefreshToken, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	t := models.RefreshToken(rec)
	return &t, nil
}

// Insert writes the record and its user index entry in one MULTI, so a
// stored token is always reachable through FindByUser.
func (s *RedisRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	data, err := encode(t)
	if err != nil {
		return err
	}

	key, userKey := s.tokenKey(t.Token), s.userKey(t.UserID)

	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrConflict
		}
		if err := checkSetKey(ctx, tx, userKey); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, userKey, t.Token)
			return nil
		})
		return err
	}, key, userKey)

	return mapTxErr(err)
}

func (s *RedisRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decode(data)
}

func (s *RedisRepository) FindByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	tokens, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	out := make([]models.RefreshToken, 0, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = s.tokenKey(tok)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		t, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedOn.After(out[j].CreatedOn)
	})
	return out, nil
}

func (s *RedisRepository) Update(ctx context.Context, t *models.RefreshToken) error {
	key := s.tokenKey(t.Token)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		if err := s.checkRevocable(ctx, tx, t.Token); err != nil {
			return err
		}
		data, err := encode(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	return mapTxErr(err)
}

func (s *RedisRepository) Rotate(ctx context.Context, old, next *models.RefreshToken) error {
	oldKey, nextKey := s.tokenKey(old.Token), s.tokenKey(next.Token)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		if err := s.checkRevocable(ctx, tx, old.Token); err != nil {
			return err
		}
		n, err := tx.Exists(ctx, nextKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrConflict
		}
		if err := checkSetKey(ctx, tx, s.userKey(next.UserID)); err != nil {
			return err
		}

		oldData, err := encode(old)
		if err != nil {
			return err
		}
		nextData, err := encode(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, oldKey, oldData, 0)
			pipe.Set(ctx, nextKey, nextData, 0)
			pipe.SAdd(ctx, s.userKey(next.UserID), next.Token)
			return nil
		})
		return err
	}, oldKey, nextKey, s.userKey(next.UserID))

	return mapTxErr(err)
}

func (s *RedisRepository) checkRevocable(ctx context.Context, tx *redis.Tx, token string) error {
	data, err := tx.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.ErrorNotFound
		}
		return err
	}
	stored, err := decode(data)
	if err != nil {
		return err
	}
	if stored.RevokedOn != nil {
		return common.ErrConflict
	}
	return nil
}

// checkSetKey rejects a user index key holding a non-set value. Redis does
// not roll back a MULTI when one command fails, so a WRONGTYPE SADD would
// otherwise leave the token record written without its index entry.
func checkSetKey(ctx context.Context, tx *redis.Tx, key string) error {
	typ, err := tx.Type(ctx, key).Result()
	if err != nil {
		return err
	}
	if typ != "none" && typ != "set" {
		return fmt.Errorf("user index %s holds a %s", key, typ)
	}
	return nil
}

func mapTxErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return common.ErrConflict
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrorNotFound):
		return err
	default:
		return fmt.Errorf("redis error: %w", err)
	}
}
