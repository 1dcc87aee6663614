// Package password hashes and verifies credentials with Argon2id.
//
// # Output format
//
// Hashes are PHC strings with unpadded base64 salt and key:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Parameters travel with the hash, so [Argon2.NeedsRehash] can flag hashes made
// with weaker settings for transparent upgrade on the next successful login.
//
// # What this package must NOT do
//
//   - Store or look up credentials.
//   - Log plaintext passwords.
package password
