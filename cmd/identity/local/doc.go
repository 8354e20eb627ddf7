// Package local is a self-hosted identity provider.
//
// Accounts live in an AccountStore (Postgres or memory), passwords are
// Argon2id hashes, and sessions are PASETO v4.public access tokens whose
// session row is checked on every restore so revocation is honored.
// The provider keeps its own current token in a TokenCache, which is how a
// prior session survives a process restart.
package local
