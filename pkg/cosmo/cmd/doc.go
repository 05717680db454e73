// Package cmd implements the cosmo command tree.
package cmd
