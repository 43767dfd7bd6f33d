package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Crazy-Jack/intelligence-cube.openclaw.app-sub000/internal/domain/model"
)

const recordKeyPrefix = "checkin:ledger:"

// RedisStore is the shared remote ledger: one hash per wallet address.
// It is always treated as eventually consistent; the local archive is
// the source of truth for the active session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the remote ledger and verifies
// reachability.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func recordKey(address string) string {
	return recordKeyPrefix + address
}

// Fetch reads the remote record, or nil when the address has no remote
// document.
func (s *RedisStore) Fetch(ctx context.Context, address string) (*model.Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch remote record %s: %w", address, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &model.Record{
		Address:        address,
		LastCheckinDay: fields["lastCheckinDay"],
		LastCheckinTx:  fields["lastCheckinTx"],
	}
	rec.Credits = parseIntField(fields, "credits")
	rec.TotalCheckins = parseIntField(fields, "totalCheckins")
	rec.LastCheckinAtMs = parseIntField(fields, "lastCheckinAtMs")
	rec.Streak = parseIntField(fields, "streak")
	return rec, nil
}

func parseIntField(fields map[string]string, name string) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Upsert writes the full record to the remote hash.
func (s *RedisStore) Upsert(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.Address == "" {
		return fmt.Errorf("remote record requires an address")
	}
	err := s.client.HSet(ctx, recordKey(rec.Address),
		"credits", rec.Credits,
		"totalCheckins", rec.TotalCheckins,
		"lastCheckinAtMs", rec.LastCheckinAtMs,
		"lastCheckinDay", rec.LastCheckinDay,
		"streak", rec.Streak,
		"lastCheckinTx", rec.LastCheckinTx,
	).Err()
	if err != nil {
		return fmt.Errorf("upsert remote record %s: %w", rec.Address, err)
	}
	return nil
}
