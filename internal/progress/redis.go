package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "progress:"

// RedisStore keeps records as JSON strings under progress:<learner>
type RedisStore struct {
	rdb *goredis.Client
}

// RedisOptions configures NewRedisStore
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("missing redis address")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, learner string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+learner).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if rec.CompletedLessons == nil {
		rec.CompletedLessons = []int{}
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	raw, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+rec.LearnerID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, learner string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+learner).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
