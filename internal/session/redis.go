package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "jobportal:"
	applicationSet = keyPrefix + "applications"
	redirectKey    = keyPrefix + "redirect_after_login"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps application summaries in Redis with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func applicationKey(jobID int) string {
	return keyPrefix + "application:" + strconv.Itoa(jobID)
}

func (s *RedisStore) SaveApplication(ctx context.Context, state models.ApplicationState) error {
	state.UpdatedAt = s.now()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode application: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, applicationKey(state.JobID), raw, s.ttl)
		pipe.SAdd(ctx, applicationSet, state.JobID)
		return nil
	})
	return err
}

func (s *RedisStore) LoadApplication(ctx context.Context, jobID int) (*models.ApplicationState, error) {
	raw, err := s.rdb.Get(ctx, applicationKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var state models.ApplicationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode application %d: %w", jobID, err)
	}
	return &state, nil
}

// MergeQuizResult updates the stored state under WATCH so a concurrent write
// is never lost. State created here is not marked qualified.
func (s *RedisStore) MergeQuizResult(ctx context.Context, jobID int, result models.QuizResult) error {
	key := applicationKey(jobID)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		state := models.ApplicationState{JobID: jobID}
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &state); err != nil {
				return fmt.Errorf("decode application %d: %w", jobID, err)
			}
		}

		score := result.Score
		state.QuizScore = &score
		state.QuizCompleted = true
		state.QuizPassed = result.Passed
		state.Answers = result.Answers
		state.UpdatedAt = s.now()
		updated, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode application: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			pipe.SAdd(ctx, applicationSet, jobID)
			return nil
		})
		return err
	}, key)
}

// ListApplications returns live summaries, newest first, pruning expired ids.
func (s *RedisStore) ListApplications(ctx context.Context) ([]models.ApplicationState, error) {
	ids, err := s.rdb.SMembers(ctx, applicationSet).Result()
	if err != nil {
		return nil, err
	}
	states := []models.ApplicationState{}
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		state, err := s.LoadApplication(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			s.rdb.SRem(ctx, applicationSet, raw)
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].UpdatedAt.Equal(states[j].UpdatedAt) {
			return states[i].JobID < states[j].JobID
		}
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states, nil
}

// DeleteApplication forgets the summary for jobID.
func (s *RedisStore) DeleteApplication(ctx context.Context, jobID int) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, applicationKey(jobID))
		pipe.SRem(ctx, applicationSet, strconv.Itoa(jobID))
		return nil
	})
	return err
}

func (s *RedisStore) SetRedirect(ctx context.Context, path string) error {
	return s.rdb.Set(ctx, redirectKey, path, s.ttl).Err()
}

func (s *RedisStore) TakeRedirect(ctx context.Context) (string, error) {
	path, err := s.rdb.GetDel(ctx, redirectKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return path, err
}
