// Package session owns the observable authentication state of the app.
//
// A Manager decides which source drives the current profile: the demo slot
// (fixed demo credentials, or signup with no identity provider configured) or
// the identity provider (sign-in, signup, restored sessions). It reacts to the
// provider's change notifications and publishes every transition to its
// subscribers.
//
// Provider-backed signup is three steps (create account, sign in, create
// profile) with no compensation: an account created before a later step fails
// is left in place and the manager reports an error state.
package session
