// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "ussd:session:"

// Store persists sessions in Redis with a sliding TTL. A missing key is a
// normal condition (the session expired mid-dialogue) and is reported as a
// nil session, never as an error.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// StoreConfig holds Redis connection configuration for the session store.
type StoreConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewStore connects to Redis and verifies the connection before returning.
func NewStore(cfg StoreConfig, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session store: redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Dur("ttl", cfg.TTL).
		Msg("connected to Redis session store")

	return &Store{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests with miniredis.
func NewStoreWithClient(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: logger}
}

func key(id string) string {
	return keyPrefix + id
}

// Save serializes the session and writes it with the configured TTL.
// A failed save is fatal for the request but not for the process.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: marshal %s: %w", sess.SessionID, err)
	}
	if err := s.client.Set(ctx, key(sess.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session store: save %s: %w", sess.SessionID, err)
	}
	return nil
}

// Load fetches a session by ID. Absence returns (nil, nil): the caller
// starts a fresh dialogue.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: load %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupt record is unrecoverable; treat it like expiry so the
		// caller starts over rather than erroring the whole leg.
		s.logger.Warn().Err(err).Str("session_id", id).Msg("discarding corrupt session record")
		return nil, nil
	}
	if sess.Data == nil {
		sess.Data = make(map[string]any)
	}
	return &sess, nil
}

// Delete removes the session eagerly. Not required on the hot path; the TTL
// handles the common case.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("session store: delete %s: %w", id, err)
	}
	return nil
}

// Extend renews the TTL without rewriting the value.
func (s *Store) Extend(ctx context.Context, id string) error {
	if err := s.client.Expire(ctx, key(id), s.ttl).Err(); err != nil {
		return fmt.Errorf("session store: extend %s: %w", id, err)
	}
	return nil
}

// HealthCheck reports whether Redis is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
