package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/metrics/export/prometheus"
	"github.com/MrEthical07/authkit/middleware"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/rbac"
	"github.com/MrEthical07/authkit/reason"
)

const refreshCookie = "authkit_refresh"

func newServer(kit *authkit.Kit, rps float64, burst int) http.Handler {
	bearer := middleware.Bearer(kit)
	sess := middleware.Session(kit, middleware.DefaultSessionCookie)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(kit))
	mux.HandleFunc("POST /refresh", refreshHandler(kit))
	mux.Handle("POST /logout", sess(logoutHandler(kit)))
	mux.Handle("GET /me", sess(http.HandlerFunc(meHandler)))
	mux.Handle("GET /articles", bearer(middleware.Require(kit, "articles:read")(http.HandlerFunc(listArticles))))
	mux.Handle("POST /articles", bearer(middleware.Require(kit, "articles:write")(http.HandlerFunc(createArticle))))
	mux.Handle("GET /metrics", prometheus.NewExporter(kit).Handler())

	return middleware.RequestID(middleware.Throttle(rps, burst)(mux))
}

func loginHandler(kit *authkit.Kit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		res, err := kit.Login(r.Context(), body.Username, body.Password, middleware.Metadata(r))
		if err != nil {
			var locked *authkit.LockedError
			switch {
			case errors.As(err, &locked):
				retry := int(time.Until(locked.Until).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, reason.Locked.Public(), http.StatusTooManyRequests)
			case errors.Is(err, authkit.ErrInvalidCredentials):
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}
			return
		}

		setCookie(w, r, middleware.DefaultSessionCookie, res.SessionID, kit.Config().Session.AbsoluteTimeout)
		setCookie(w, r, refreshCookie, res.Tokens.RefreshToken, kit.Config().Refresh.TTL)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": res.Tokens.AccessToken,
			"expires_at":   res.Tokens.AccessExpiresAt,
		})
	}
}

func refreshHandler(kit *authkit.Kit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(refreshCookie)
		if err != nil || c.Value == "" {
			http.Error(w, reason.Unauthenticated.Public(), http.StatusUnauthorized)
			return
		}

		pair, err := kit.Refresh(r.Context(), c.Value)
		if err != nil {
			if reason.Of(err) == reason.None {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			clearCookie(w, r, refreshCookie)
			http.Error(w, reason.Of(err).Public(), http.StatusUnauthorized)
			return
		}

		setCookie(w, r, refreshCookie, pair.RefreshToken, kit.Config().Refresh.TTL)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": pair.AccessToken,
			"expires_at":   pair.AccessExpiresAt,
		})
	}
}

func logoutHandler(kit *authkit.Kit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _ := middleware.SessionFromContext(r.Context())
		var rt string
		if c, err := r.Cookie(refreshCookie); err == nil {
			rt = c.Value
		}
		if err := kit.Logout(r.Context(), s.ID, rt); err != nil {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		clearCookie(w, r, middleware.DefaultSessionCookie)
		clearCookie(w, r, refreshCookie)
		w.WriteHeader(http.StatusNoContent)
	}
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	s, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       s.UserID,
		"created_at":    s.CreatedAt,
		"last_activity": s.LastActivity,
	})
}

func listArticles(w http.ResponseWriter, r *http.Request) {
	sub, _ := rbac.SubjectFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"reader": sub, "articles": []string{"hello-world"}})
}

func createArticle(w http.ResponseWriter, r *http.Request) {
	sub, _ := rbac.SubjectFromContext(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"author": sub})
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// demoUsers is an in-memory UserProvider. A real deployment backs this with its
// user database.
type demoUsers struct {
	mu      sync.RWMutex
	byIdent map[string]authkit.UserRecord
}

func seedUsers(hasher password.Hasher, identifier, pw string) (*demoUsers, error) {
	hash, err := hasher.Hash(pw)
	if err != nil {
		return nil, err
	}
	return &demoUsers{byIdent: map[string]authkit.UserRecord{
		identifier: {UserID: "user-1", Identifier: identifier, PasswordHash: hash, Roles: []string{"editor"}},
	}}, nil
}

func (u *demoUsers) GetUserByIdentifier(_ context.Context, identifier string) (authkit.UserRecord, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	rec, ok := u.byIdent[identifier]
	if !ok {
		return authkit.UserRecord{}, authkit.ErrUserNotFound
	}
	return rec, nil
}

func (u *demoUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for ident, rec := range u.byIdent {
		if rec.UserID == userID {
			rec.PasswordHash = newHash
			u.byIdent[ident] = rec
			return nil
		}
	}
	return authkit.ErrUserNotFound
}
