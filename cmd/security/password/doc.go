// Package password hashes and verifies account passwords for the self-hosted
// identity provider.
//
// Hashes are Argon2id in the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
//
// Hash strings are untrusted input during Verify: parameters far above the
// configured cost are refused.
package password
