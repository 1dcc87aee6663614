// Command authkit-loadtest seeds sessions and refresh tokens in Redis, then
// measures concurrent session validation and refresh rotation.
//
// With no -redis-addr and no REDIS_ADDR an embedded miniredis is used.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authkit/refresh"
	"github.com/MrEthical07/authkit/session"
	"github.com/MrEthical07/authkit/store"
	"github.com/MrEthical07/authkit/token"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; falls back to REDIS_ADDR, then miniredis")
		prefix      = flag.String("prefix", "lt:", "key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	rep, err := run(context.Background(), store.NewRedis(client, *prefix), *sessions, *ops, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println("---- results ----")
	printStats("validate", rep.validate)
	printStats("refresh", rep.refresh)
}

type report struct {
	validate phaseStats
	refresh  phaseStats
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func run(ctx context.Context, kv store.Store, n, ops, concurrency int) (report, error) {
	secret := make([]byte, token.MinSecretBytes)
	for i := range secret {
		secret[i] = byte(i*7 + 3)
	}
	tokens, err := token.New(token.Config{Secret: secret})
	if err != nil {
		return report{}, err
	}
	refreshStore, err := refresh.NewStore(tokens, kv, refresh.Config{})
	if err != nil {
		return report{}, err
	}
	registry, err := session.NewRegistry(kv, session.DefaultConfig())
	if err != nil {
		return report{}, err
	}

	fmt.Printf("seeding %d sessions...\n", n)
	start := time.Now()
	states, err := seed(ctx, registry, refreshStore, n)
	if err != nil {
		return report{}, err
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))

	validate := runPhase(ops, concurrency, func(_ int, s *clientState) error {
		_, err := registry.Validate(ctx, s.sessionID, s.md)
		return err
	}, states)

	rotate := runPhase(ops, concurrency, func(_ int, s *clientState) error {
		pair, err := refreshStore.Refresh(ctx, s.refreshToken)
		if err != nil {
			return err
		}
		s.refreshToken = pair.RefreshToken
		return nil
	}, states)

	return report{validate: validate, refresh: rotate}, nil
}

func seed(ctx context.Context, registry *session.Registry, rs *refresh.Store, n int) ([]clientState, error) {
	states := make([]clientState, n)
	for i := range states {
		userID := fmt.Sprintf("user-%d", i)
		md := session.Metadata{
			UserAgent: fmt.Sprintf("loadtest/%d", i%16),
			IP:        fmt.Sprintf("10.0.%d.%d", (i/256)%256, i%256),
		}
		sid, err := registry.Create(ctx, userID, md)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		pair, err := rs.Generate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}
		states[i] = clientState{sessionID: sid, refreshToken: pair.RefreshToken, md: md}
	}
	return states, nil
}
