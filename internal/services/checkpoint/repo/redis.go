package repo

import (
	"context"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/services/checkpoint/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the hash the checkpoint lives under
const DefaultKey = "postgresql_films"

// heldLua sets `held` when the record is locked; older writers stored True or 1
const heldLua = `
local locked = redis.call('HGET', KEYS[1], 'locked')
local held = locked and (string.lower(locked) == 'true' or locked == '1')
`

// ARGV: owner, now_ms, lease_until_ms, epoch cursor
var acquireScript = redis.NewScript(heldLua + `
if held then
	local lease = tonumber(redis.call('HGET', KEYS[1], 'lease_until') or '0') or 0
	if lease == 0 or lease > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('HSETNX', KEYS[1], 'cursor', ARGV[4])
redis.call('HSET', KEYS[1], 'locked', 'true', 'owner', ARGV[1], 'lease_until', ARGV[3])
return 1
`)

// ARGV: owner. Returns 0 when another owner holds the lease
var releaseScript = redis.NewScript(heldLua + `
if not held then
	return 1
end
if redis.call('HGET', KEYS[1], 'owner') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'locked', 'false', 'owner', '', 'lease_until', '0')
return 1
`)

// ARGV: owner, raw cursor the caller decoded, next cursor in CursorLayout.
// Returns 0 when the lease is gone and -1 when the cursor moved since the read
var commitScript = redis.NewScript(heldLua + `
if not held or redis.call('HGET', KEYS[1], 'owner') ~= ARGV[1] then
	return 0
end
if (redis.call('HGET', KEYS[1], 'cursor') or '') ~= ARGV[2] then
	return -1
end
redis.call('HSET', KEYS[1], 'cursor', ARGV[3], 'locked', 'false', 'owner', '', 'lease_until', '0')
return 1
`)

// commitAttempts bounds how often Commit re-reads a cursor rewritten under it
const commitAttempts = 3

// Redis keeps the checkpoint in one hash; lease transitions run as Lua scripts
type Redis struct {
	rdb redis.UniversalClient
	key string
	now Clock
}

// NewRedis binds the store to key
func NewRedis(rdb redis.UniversalClient, key string, now Clock) *Redis {
	if rdb == nil {
		panic("checkpoint.Redis requires a non nil redis client")
	}
	if key == "" {
		key = DefaultKey
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{rdb: rdb, key: key, now: now}
}

// Get returns the record
func (r *Redis) Get(ctx context.Context) (domain.Checkpoint, error) {
	m, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return domain.Checkpoint{}, stateErr(err, "read")
	}
	return domain.Decode(m)
}

// Set overwrites the record
func (r *Redis) Set(ctx context.Context, cp domain.Checkpoint) error {
	fields := make(map[string]any, 4)
	for k, v := range domain.Encode(cp) {
		fields[k] = v
	}
	return stateErr(r.rdb.HSet(ctx, r.key, fields).Err(), "write")
}

// Acquire claims the lease atomically
func (r *Redis) Acquire(ctx context.Context, owner string, ttl time.Duration) (domain.Checkpoint, bool, error) {
	now := r.now()
	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	n, err := acquireScript.Run(ctx, r.rdb, []string{r.key},
		owner, now.UnixMilli(), domain.FormatMillis(until), domain.FormatCursor(domain.Epoch),
	).Int()
	if err != nil {
		return domain.Checkpoint{}, false, stateErr(err, "acquire")
	}
	cp, err := r.Get(ctx)
	return cp, n == 1, err
}

// Release unlocks the lease held by owner
func (r *Redis) Release(ctx context.Context, owner string) error {
	n, err := releaseScript.Run(ctx, r.rdb, []string{r.key}, owner).Int()
	if err != nil {
		return stateErr(err, "release")
	}
	if n != 1 {
		return domain.ErrLeaseLost
	}
	return nil
}

// Commit advances the cursor (never backwards) and unlocks. Stored cursors may
// carry any spelling ParseCursor accepts, so the comparison happens on decoded
// times and the script only guards that the record did not change meanwhile
func (r *Redis) Commit(ctx context.Context, owner string, cursor time.Time) error {
	for range commitAttempts {
		m, err := r.rdb.HGetAll(ctx, r.key).Result()
		if err != nil {
			return stateErr(err, "read")
		}
		cp, err := domain.Decode(m)
		if err != nil {
			return err
		}
		next, err := cp.Advance(owner, cursor)
		if err != nil {
			return err
		}
		n, err := commitScript.Run(ctx, r.rdb, []string{r.key},
			owner, m[domain.FieldCursor], domain.FormatCursor(next.Cursor),
		).Int()
		if err != nil {
			return stateErr(err, "commit")
		}
		switch n {
		case 1:
			return nil
		case 0:
			return domain.ErrLeaseLost
		}
	}
	return perr.New(perr.ErrorCodeConflict, "checkpoint: cursor kept changing during commit")
}

// stateErr classifies redis failures; connectivity problems stay retryable
func stateErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if perr.Retryable(err) {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "checkpoint: %s", op)
	}
	return perr.Wrapf(err, perr.ErrorCodeState, "checkpoint: %s", op)
}

var _ domain.Store = (*Redis)(nil)
