package repo

import (
	"context"
	"encoding/json"
	"time"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/services/deadletter/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding queued letters, scored by detection ms
const DefaultKey = "moviesync:dlq"

// meta is the per letter bookkeeping stored in the companion hash
type meta struct {
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}

// Redis keeps letters in a sorted set plus a hash of attempt metadata
type Redis struct {
	rdb  redis.UniversalClient
	key  string
	meta string
}

// NewRedis returns a queue under key; metadata lives at key + ":meta"
func NewRedis(rdb redis.UniversalClient, key string) *Redis {
	if rdb == nil {
		panic("deadletter: nil redis client")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Redis{rdb: rdb, key: key, meta: key + ":meta"}
}

// Push adds letters; members already present keep their score and metadata
func (q *Redis) Push(ctx context.Context, letters ...domain.Letter) error {
	if len(letters) == 0 {
		return nil
	}
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, l := range letters {
			b, err := json.Marshal(meta{Attempts: l.Attempts, Reason: l.Reason})
			if err != nil {
				return err
			}
			p.ZAddNX(ctx, q.key, redis.Z{Score: float64(l.DetectedAt.UnixMilli()), Member: l.Key()})
			p.HSetNX(ctx, q.meta, l.Key(), b)
		}
		return nil
	})
	return queueErr(err, "push")
}

// Due returns up to limit letters, oldest first
func (q *Redis) Due(ctx context.Context, limit int) ([]domain.Letter, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	zs, err := q.rdb.ZRangeWithScores(ctx, q.key, 0, stop).Result()
	if err != nil {
		return nil, queueErr(err, "due")
	}
	if len(zs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(zs))
	for i, z := range zs {
		keys[i], _ = z.Member.(string)
	}
	metas, err := q.rdb.HMGet(ctx, q.meta, keys...).Result()
	if err != nil {
		return nil, queueErr(err, "due")
	}

	out := make([]domain.Letter, 0, len(zs))
	for i, z := range zs {
		idx, id, ok := domain.ParseKey(keys[i])
		if !ok {
			continue
		}
		l := domain.Letter{
			Index:      idx,
			ID:         id,
			DetectedAt: time.UnixMilli(int64(z.Score)).UTC(),
		}
		if s, ok := metas[i].(string); ok && s != "" {
			var m meta
			if json.Unmarshal([]byte(s), &m) == nil {
				l.Attempts, l.Reason = m.Attempts, m.Reason
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// Ack removes letters and their metadata
func (q *Redis) Ack(ctx context.Context, letters ...domain.Letter) error {
	if len(letters) == 0 {
		return nil
	}
	keys := make([]string, len(letters))
	members := make([]any, len(letters))
	for i, l := range letters {
		keys[i] = l.Key()
		members[i] = l.Key()
	}
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.key, members...)
		p.HDel(ctx, q.meta, keys...)
		return nil
	})
	return queueErr(err, "ack")
}

// Fail bumps the attempt count and stores the latest reason
func (q *Redis) Fail(ctx context.Context, l domain.Letter, reason string) (int, error) {
	var m meta
	s, err := q.rdb.HGet(ctx, q.meta, l.Key()).Result()
	switch {
	case err == redis.Nil:
		m.Attempts = l.Attempts
	case err != nil:
		return 0, queueErr(err, "fail")
	default:
		_ = json.Unmarshal([]byte(s), &m)
	}
	m.Attempts++
	m.Reason = reason
	b, err := json.Marshal(m)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeState, "deadletter: encode meta")
	}
	if err := q.rdb.HSet(ctx, q.meta, l.Key(), b).Err(); err != nil {
		return 0, queueErr(err, "fail")
	}
	return m.Attempts, nil
}

// Len returns the number of queued letters
func (q *Redis) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	return n, queueErr(err, "len")
}

// Purge drops the queue and returns how many letters it held
func (q *Redis) Purge(ctx context.Context) (int64, error) {
	var card *redis.IntCmd
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		card = p.ZCard(ctx, q.key)
		p.Del(ctx, q.key, q.meta)
		return nil
	})
	if err != nil {
		return 0, queueErr(err, "purge")
	}
	return card.Val(), nil
}

func queueErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if perr.Retryable(err) {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "deadletter: %s", op)
	}
	return perr.Wrapf(err, perr.ErrorCodeState, "deadletter: %s", op)
}

var _ domain.Queue = (*Redis)(nil)
