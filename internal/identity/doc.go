// Package identity binds transport connections to verified users.
//
// A Verifier turns a client credential into a user id. The Cache maps each
// live connection to the identity it authenticated as; entries exist only
// between a successful authenticate message and the connection closing.
package identity
