// Package account holds the gym-league account model shared by the session
// manager, the identity providers and the profile store.
//
// A Profile is the extended account record (name, role, gym affiliation)
// layered on top of a bare provider identity. This package has no I/O.
package account
