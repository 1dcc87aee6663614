package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ARGV: expected, replacement, ttl in ms (0 keeps the key persistent).
const compareAndSwapScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

// Fixed-window semantics: TTL is set only by the first hit in a window, so the key
// disappearing is the window reset.
const incrementScript = `
local count = redis.call("INCR", KEYS[1])
local window = tonumber(ARGV[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], window)
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], window)
  ttl = window
end
return {count, ttl}
`

const addMemberScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SADD", KEYS[1], ARGV[1])
local want = tonumber(ARGV[2])
if want > 0 then
  local ttl = redis.call("PTTL", KEYS[1])
  if existed == 0 or (ttl >= 0 and ttl < want) then
    redis.call("PEXPIRE", KEYS[1], want)
  end
end
return 1
`

var (
	compareAndSwapLua   = redis.NewScript(compareAndSwapScript)
	incrementLua        = redis.NewScript(incrementScript)
	addMemberLua        = redis.NewScript(addMemberScript)
)

// Redis is a Store backed by go-redis. All keys are namespaced with prefix.
//
// Take uses GETDEL and therefore needs Redis 6.2 or newer.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis wraps client. prefix is prepended verbatim to every key.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Take(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	n, err := compareAndSwapLua.Run(ctx, r.client, []string{r.key(key)}, expected, value, millis(ttl)).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func (r *Redis) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	if window < time.Millisecond {
		window = time.Millisecond
	}
	res, err := incrementLua.Run(ctx, r.client, []string{r.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Counter{}, unavailable(err)
	}
	if len(res) != 2 {
		return Counter{}, unavailable(fmt.Errorf("unexpected increment reply length %d", len(res)))
	}
	return Counter{
		Count:   res[0],
		ResetAt: r.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// millis converts ttl for the scripts: 0 for no expiry, otherwise at least 1ms.
func millis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return max(ttl.Milliseconds(), 1)
}

func (r *Redis) AddMember(ctx context.Context, key, member string, ttl time.Duration) error {
	if err := addMemberLua.Run(ctx, r.client, []string{r.key(key)}, member, millis(ttl)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) RemoveMember(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, r.key(key), member).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return members, nil
}
