// Package client talks to the Cosmo publishing API: it requests pre-signed
// upload URLs and PUTs widget archives to them.
package client
