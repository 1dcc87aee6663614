// Command authkit-demo serves a small HTTP API guarded by authkit.
//
// Configuration comes from AUTHKIT_* environment variables; only
// AUTHKIT_SIGNING_SECRET is required. With AUTHKIT_REDIS_ADDR unset the kit
// keeps all state in memory.
//
// Endpoints:
//
//	POST /login          JSON {"username":"...","password":"..."}; sets session and refresh cookies
//	POST /refresh        rotates the refresh cookie, returns a new access token
//	POST /logout         destroys the current session
//	GET  /me             session-guarded
//	GET  /articles       bearer token with articles:read
//	POST /articles       bearer token with articles:write
//	GET  /metrics        Prometheus exposition
//
// Run:
//
//	AUTHKIT_SIGNING_SECRET=$(openssl rand -hex 32) go run ./cmd/authkit-demo
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/password"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		seedUser = flag.String("seed-user", "alice@example.com", "identifier of the seeded demo user")
		seedPass = flag.String("seed-password", "correct-horse-battery", "password of the seeded demo user")
		rps      = flag.Float64("rps", 20, "per-client requests per second")
		burst    = flag.Int("burst", 40, "per-client burst")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *addr, *seedUser, *seedPass, *rps, *burst); err != nil {
		log.Fatal("authkit-demo failed", zap.Error(err))
	}
}

func run(log *zap.Logger, addr, seedUser, seedPass string, rps float64, burst int) error {
	cfg, err := authkit.ConfigFromEnv(nil)
	if err != nil {
		return err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}
	users, err := seedUsers(hasher, seedUser, seedPass)
	if err != nil {
		return err
	}

	kit, err := authkit.New().
		WithConfig(cfg).
		WithLogger(log).
		WithPasswordHasher(hasher).
		WithPermissions([]string{"articles:read", "articles:write"}).
		WithRoles(map[string][]string{
			"viewer": {"articles:read"},
			"editor": {"articles:read", "articles:write"},
		}).
		WithUserProvider(users).
		Build()
	if err != nil {
		return err
	}
	defer kit.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(kit, rps, burst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
