// Package token hashes provider session tokens before they are stored.
//
// Output is always a 64-char hex string. With GYM_TOKEN_HMAC_KEY set the hash
// is HMAC-SHA256(token, key); without it, plain SHA-256 (development only).
package token
