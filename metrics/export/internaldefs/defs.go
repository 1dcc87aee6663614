package internaldefs

import (
	"github.com/MrEthical07/authkit"
)

// CounterDef names one in-process counter.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef names one in-process histogram.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for authkit.Kit.AuditDropped.
const AuditDroppedName = "authkit_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authkit.MetricLoginLocked, Name: "authkit_login_locked_total", Help: "Logins refused because the identifier was locked out."},
	{ID: authkit.MetricAuthorizeAllowed, Name: "authkit_authorize_allowed_total", Help: "Permission checks that passed."},
	{ID: authkit.MetricAuthorizeDenied, Name: "authkit_authorize_denied_total", Help: "Permission checks that failed."},
	{ID: authkit.MetricTokenVerified, Name: "authkit_token_verified_total", Help: "Access tokens accepted."},
	{ID: authkit.MetricTokenRejected, Name: "authkit_token_rejected_total", Help: "Access tokens rejected for any reason."},
	{ID: authkit.MetricTokenForgery, Name: "authkit_token_forgery_total", Help: "Access tokens rejected for algorithm or signature mismatch."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Refresh token rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Refresh attempts that failed."},
	{ID: authkit.MetricSessionCreated, Name: "authkit_session_created_total", Help: "Sessions created."},
	{ID: authkit.MetricSessionValidated, Name: "authkit_session_validated_total", Help: "Session validations that passed."},
	{ID: authkit.MetricSessionExpired, Name: "authkit_session_expired_total", Help: "Sessions rejected for idle or absolute expiry."},
	{ID: authkit.MetricSessionHijack, Name: "authkit_session_hijack_total", Help: "Sessions destroyed on fingerprint mismatch."},
	{ID: authkit.MetricSessionRegenerated, Name: "authkit_session_regenerated_total", Help: "Session id regenerations."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Single-session logouts."},
	{ID: authkit.MetricLogoutAll, Name: "authkit_logout_all_total", Help: "Logout-all operations."},
	{ID: authkit.MetricRateLimitHit, Name: "authkit_rate_limit_hit_total", Help: "Attempts that exhausted the rate limit."},
}

var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricValidateLatency, Name: "authkit_validate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in flattened exporters.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
