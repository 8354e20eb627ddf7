// Package identity defines the identity-provider boundary consumed by the
// session manager: sign-in, sign-up, sign-out, current-session lookup and a
// change-notification stream.
//
// Providers issue and validate sessions; they never load or write profiles.
// Implementations live in the local (self-hosted) and oidc subpackages.
package identity
