// Package token issues and verifies signed, expiring bearer tokens in the compact
// JWT wire format: base64url(header).base64url(payload).base64url(hmac), unpadded.
//
// # Verification order
//
//  1. Shape: exactly three segments.
//  2. Algorithm: the header alg must equal the configured algorithm. This runs
//     before any signature work, closing alg:none and algorithm substitution.
//  3. Signature: HMAC recomputed and compared in constant time.
//  4. Time bounds and registered claims (exp, nbf, iss, aud).
//
// Tokens are stateless; nothing is stored server-side.
package token
