package rbac

import (
	"context"

	"github.com/MrEthical07/authkit/reason"
)

type subjectContextKey struct{}

// WithSubject attaches the authenticated user id to ctx.
func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, userID)
}

// SubjectFromContext returns the user id set by WithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(subjectContextKey{}).(string)
	return id, id != ""
}

// Decision is the outcome of an authorization check. A denied decision carries
// reason.Denied or reason.Unauthenticated.
type Decision struct {
	Allowed    bool
	Reason     reason.Reason
	Subject    string
	Permission string
}

// Err returns nil for allowed decisions and the denial reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// Check evaluates an authorization rule against the subject carried by ctx.
type Check func(ctx context.Context) Decision

// Authorize returns a Check requiring permission. The Check writes nothing; the
// caller turns the Decision into a response.
func (a *Authority) Authorize(permission string) Check {
	return func(ctx context.Context) Decision {
		d := Decision{Permission: permission}

		subject, ok := SubjectFromContext(ctx)
		if !ok {
			d.Reason = reason.Unauthenticated
			return d
		}
		d.Subject = subject

		if !a.Can(subject, permission) {
			d.Reason = reason.Denied
			return d
		}
		d.Allowed = true
		return d
	}
}
