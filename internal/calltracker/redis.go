package calltracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs call sessions with Redis for multi-instance deployments,
// where webhook deliveries and accept actions can land on different
// processes. Atomicity comes from Lua scripts; staleness from key TTLs, so
// PruneStale has nothing to return here.
type RedisStore struct {
	rdb *redis.Client

	// sessionTTL bounds unaccepted sessions; acceptedTTL bounds accepted
	// ones (long enough for any real call, short enough to not leak keys
	// when an end webhook is lost).
	sessionTTL  time.Duration
	acceptedTTL time.Duration
	clock       func() time.Time
}

const sessionKeyPrefix = "callsession:"

func NewRedisStore(rdb *redis.Client, sessionTTL time.Duration) *RedisStore {
	if sessionTTL <= 0 {
		sessionTTL = 10 * time.Minute
	}
	return &RedisStore{
		rdb:         rdb,
		sessionTTL:  sessionTTL,
		acceptedTTL: 4 * time.Hour,
		clock:       time.Now,
	}
}

var ensureScript = redis.NewScript(`
-- KEYS[1] = session key
-- ARGV[1] = target user id
-- ARGV[2] = created unix ms
-- ARGV[3] = ttl ms
-- Returns 1 if created, 0 if the session already existed.
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'accepted', '0', 'target', ARGV[1], 'created', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

var acceptScript = redis.NewScript(`
-- KEYS[1] = session key
-- ARGV[1] = created unix ms (used when the session is created here)
-- ARGV[2] = accepted ttl ms
-- Returns 1 if this caller won the claim, 0 if already accepted.
local acc = redis.call('HGET', KEYS[1], 'accepted')
if acc == '1' then
  return 0
end
if acc == false then
  redis.call('HSET', KEYS[1], 'target', '', 'created', ARGV[1])
end
redis.call('HSET', KEYS[1], 'accepted', '1')
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

func (s *RedisStore) key(callID string) string {
	return sessionKeyPrefix + callID
}

func (s *RedisStore) Ensure(ctx context.Context, callID, targetUserID string) (Session, bool, error) {
	now := s.clock().UTC()
	created, err := ensureScript.Run(ctx, s.rdb,
		[]string{s.key(callID)},
		targetUserID, now.UnixMilli(), s.sessionTTL.Milliseconds(),
	).Int()
	if err != nil {
		return Session{}, false, fmt.Errorf("calltracker: ensure session: %w", err)
	}
	if created == 1 {
		return Session{CallID: callID, TargetUserID: targetUserID, CreatedAt: now}, true, nil
	}
	sess, _, err := s.Get(ctx, callID)
	if err != nil {
		return Session{}, false, err
	}
	return sess, false, nil
}

func (s *RedisStore) Accept(ctx context.Context, callID string) error {
	won, err := acceptScript.Run(ctx, s.rdb,
		[]string{s.key(callID)},
		s.clock().UTC().UnixMilli(), s.acceptedTTL.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("calltracker: accept session: %w", err)
	}
	if won == 0 {
		return ErrAlreadyAccepted
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, callID string) (Session, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(callID)).Result()
	if err != nil {
		return Session{}, false, fmt.Errorf("calltracker: get session: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, false, nil
	}

	sess := Session{
		CallID:       callID,
		Accepted:     fields["accepted"] == "1",
		TargetUserID: fields["target"],
	}
	if ms, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
		sess.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return sess, true, nil
}

func (s *RedisStore) End(ctx context.Context, callID string) error {
	if err := s.rdb.Del(ctx, s.key(callID)).Err(); err != nil {
		return fmt.Errorf("calltracker: end session: %w", err)
	}
	return nil
}

func (s *RedisStore) PruneStale(ctx context.Context, maxAge time.Duration) ([]string, error) {
	// TTLs already expire stale keys.
	return nil, nil
}
