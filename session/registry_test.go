package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var browser = Metadata{
	UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0",
	AcceptLanguage: "en-GB,en;q=0.9",
	IP:             "203.0.113.7",
}

func newRegistry(t *testing.T) (*Registry, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	r, err := NewRegistry(store.NewMemory(clock.Now), Config{
		IdleTimeout:     30 * time.Minute,
		AbsoluteTimeout: 24 * time.Hour,
		Clock:           clock.Now,
	})
	require.NoError(t, err)
	return r, clock
}

func TestCreateAndValidate(t *testing.T) {
	r, clock := newRegistry(t)
	ctx := context.Background()

	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(id), 43)

	clock.Advance(5 * time.Minute)
	s, err := r.Validate(ctx, id, browser)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, clock.Now(), s.LastActivity)
	assert.Equal(t, browser.IP, s.Metadata.IP)
}

func TestValidateUnknown(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Validate(context.Background(), "missing", browser)
	assert.ErrorIs(t, err, reason.NotFound)
}

func TestIdleTimeoutSlidesOnActivity(t *testing.T) {
	r, clock := newRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		clock.Advance(29 * time.Minute)
		_, err := r.Validate(ctx, id, browser)
		require.NoError(t, err, "round %d", i)
	}

	clock.Advance(31 * time.Minute)
	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.IdleExpired)
	assert.ErrorIs(t, err, reason.Expired)

	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.NotFound, "expired session must be destroyed")
}

func TestAbsoluteTimeoutWinsOverActivity(t *testing.T) {
	r, clock := newRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	deadline := clock.Now().Add(24 * time.Hour)
	for clock.Now().Add(20 * time.Minute).Before(deadline) {
		clock.Advance(20 * time.Minute)
		_, err := r.Validate(ctx, id, browser)
		require.NoError(t, err)
	}

	clock.Advance(20*time.Minute + 30*time.Second)
	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.AbsoluteExpired)
}

func TestHijackDestroysSession(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	attacker := browser
	attacker.UserAgent = "curl/8.5.0"
	_, err = r.Validate(ctx, id, attacker)
	assert.ErrorIs(t, err, reason.Hijacked)
	assert.True(t, reason.Of(err).IsSecurityEvent())

	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.NotFound)
}

func TestIPChangeIsNotHijack(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	roaming := browser
	roaming.IP = "198.51.100.23"
	_, err = r.Validate(ctx, id, roaming)
	assert.NoError(t, err)
}

func TestRegenerate(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	oldID, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	newID, err := r.Regenerate(ctx, oldID, browser)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	_, err = r.Validate(ctx, oldID, browser)
	assert.ErrorIs(t, err, reason.NotFound)

	s, err := r.Validate(ctx, newID, browser)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = r.Regenerate(ctx, oldID, browser)
	assert.ErrorIs(t, err, reason.NotFound)
}

func TestDestroyIsIdempotent(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	require.NoError(t, r.Destroy(ctx, id))
	require.NoError(t, r.Destroy(ctx, id))
	require.NoError(t, r.Destroy(ctx, ""))
	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.NotFound)
}

func TestDestroyAllAndListForUserAgainstRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock := &testClock{now: time.Now()}
	r, err := NewRegistry(store.NewRedis(rdb, "authkit:"), Config{Clock: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := r.Create(ctx, "u1", browser)
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Second)
	}
	other, err := r.Create(ctx, "u2", browser)
	require.NoError(t, err)

	list, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, s := range list {
		assert.Equal(t, ids[i], s.ID)
	}

	n, err := r.DestroyAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, id := range ids {
		_, err := r.Validate(ctx, id, browser)
		assert.ErrorIs(t, err, reason.NotFound)
	}
	_, err = r.Validate(ctx, other, browser)
	assert.NoError(t, err)
}

func TestNewRegistryValidation(t *testing.T) {
	kv := store.NewMemory(nil)
	_, err := NewRegistry(nil, Config{})
	assert.Error(t, err)
	_, err = NewRegistry(kv, Config{IDBytes: 8})
	assert.Error(t, err)
	_, err = NewRegistry(kv, Config{IdleTimeout: 2 * time.Hour, AbsoluteTimeout: time.Hour})
	assert.Error(t, err)

	r, err := NewRegistry(kv, Config{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, r.Config().IdleTimeout)
	assert.Equal(t, 24*time.Hour, r.Config().AbsoluteTimeout)
}

func TestCorruptRecordSurfaces(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	kv := store.NewMemory(clock.Now)
	r, err := NewRegistry(kv, Config{Clock: clock.Now})
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), sessionKeyPrefix+"bad", []byte{9, 9}, time.Hour))
	_, err = r.Validate(context.Background(), "bad", browser)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

// interleavingStore runs queued callbacks inside the registry's own store calls,
// one callback per call, so tests can land a competing operation between a read
// and the write that follows it.
type interleavingStore struct {
	store.Store

	mu         sync.Mutex
	afterGet   []func()
	beforeSwap []func()
}

func (s *interleavingStore) pop(queue *[]func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(*queue) == 0 {
		return nil
	}
	fn := (*queue)[0]
	*queue = (*queue)[1:]
	return fn
}

func (s *interleavingStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.Store.Get(ctx, key)
	if fn := s.pop(&s.afterGet); fn != nil {
		fn()
	}
	return v, err
}

func (s *interleavingStore) CompareAndSwap(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	if fn := s.pop(&s.beforeSwap); fn != nil {
		fn()
	}
	return s.Store.CompareAndSwap(ctx, key, expected, value, ttl)
}

func newInterleavedRegistry(t *testing.T) (*Registry, *interleavingStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	kv := &interleavingStore{Store: store.NewMemory(clock.Now)}
	r, err := NewRegistry(kv, Config{
		IdleTimeout:     30 * time.Minute,
		AbsoluteTimeout: 24 * time.Hour,
		Clock:           clock.Now,
	})
	require.NoError(t, err)
	return r, kv, clock
}

func TestHijackDestroysSessionTouchedConcurrently(t *testing.T) {
	r, kv, clock := newInterleavedRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	// The owner's request lands after the attacker's read and re-saves the
	// record with a newer LastActivity.
	kv.afterGet = append(kv.afterGet, func() {
		clock.Advance(time.Second)
		_, err := r.Validate(ctx, id, browser)
		require.NoError(t, err)
	})

	attacker := browser
	attacker.UserAgent = "curl/8.5.0"
	_, err = r.Validate(ctx, id, attacker)
	require.ErrorIs(t, err, reason.Hijacked)

	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.NotFound)
	list, err := r.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIdleExpiryDestroysSessionTouchedConcurrently(t *testing.T) {
	r, kv, clock := newInterleavedRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	kv.afterGet = append(kv.afterGet, func() {
		require.NoError(t, kv.Store.Set(ctx, sessionKeyPrefix+id, []byte("rewritten"), time.Hour))
	})
	_, err = r.Validate(ctx, id, browser)
	require.ErrorIs(t, err, reason.IdleExpired)

	_, err = kv.Store.Get(ctx, sessionKeyPrefix+id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateDoesNotResurrectAfterDestroyAll(t *testing.T) {
	r, kv, _ := newInterleavedRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	kv.beforeSwap = append(kv.beforeSwap, func() {
		n, err := r.DestroyAllForUser(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
	_, err = r.Validate(ctx, id, browser)
	require.ErrorIs(t, err, reason.NotFound)

	_, err = r.Get(ctx, id)
	assert.ErrorIs(t, err, reason.NotFound)
	_, err = r.Validate(ctx, id, browser)
	assert.ErrorIs(t, err, reason.NotFound)
}

func TestValidateDoesNotResurrectRegeneratedID(t *testing.T) {
	r, kv, _ := newInterleavedRegistry(t)
	ctx := context.Background()
	oldID, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	var newID string
	kv.beforeSwap = append(kv.beforeSwap, func() {
		var err error
		newID, err = r.Regenerate(ctx, oldID, browser)
		require.NoError(t, err)
	})
	_, err = r.Validate(ctx, oldID, browser)
	require.ErrorIs(t, err, reason.NotFound)

	_, err = r.Get(ctx, oldID)
	assert.ErrorIs(t, err, reason.NotFound)
	s, err := r.Validate(ctx, newID, browser)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
}

func TestConcurrentTouchesBothSucceed(t *testing.T) {
	r, kv, clock := newInterleavedRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	kv.beforeSwap = append(kv.beforeSwap, func() {
		clock.Advance(time.Second)
		_, err := r.Validate(ctx, id, browser)
		require.NoError(t, err)
	})
	s, err := r.Validate(ctx, id, browser)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), s.LastActivity)

	stored, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.LastActivity.Equal(clock.Now()))
}

func TestValidateGivesUpUnderContention(t *testing.T) {
	r, kv, _ := newInterleavedRegistry(t)
	ctx := context.Background()
	id, err := r.Create(ctx, "u1", browser)
	require.NoError(t, err)

	bump := func() {
		raw, err := kv.Store.Get(ctx, sessionKeyPrefix+id)
		require.NoError(t, err)
		s, err := Decode(raw)
		require.NoError(t, err)
		s.LastActivity = s.LastActivity.Add(time.Nanosecond)
		data, err := Encode(s)
		require.NoError(t, err)
		require.NoError(t, kv.Store.Set(ctx, sessionKeyPrefix+id, data, time.Hour))
	}
	for range maxTouchAttempts {
		kv.beforeSwap = append(kv.beforeSwap, bump)
	}

	_, err = r.Validate(ctx, id, browser)
	require.ErrorIs(t, err, ErrContention)

	_, err = r.Validate(ctx, id, browser)
	assert.NoError(t, err)
}

func TestCreateAcceptsLongUserID(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	long := strings.Repeat("u", 300)

	id, err := r.Create(ctx, long, browser)
	require.NoError(t, err)
	s, err := r.Validate(ctx, id, browser)
	require.NoError(t, err)
	assert.Equal(t, long, s.UserID)

	n, err := r.DestroyAllForUser(ctx, long)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
