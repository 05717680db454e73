// Package auth handles Cosmo CLI authentication: the browser login flow with
// a one-shot localhost callback listener, token persistence in a file or the
// OS keychain, and JWT expiry checks.
package auth
