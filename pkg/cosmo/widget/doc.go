// Package widget turns a widget project on disk into a publishable release:
// it runs the build, derives the manifest and zips the dist directory.
package widget
