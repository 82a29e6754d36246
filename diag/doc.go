// Package diag renders diagnostics: a dump of everything a feature registry
// offers for a platform group, and a DOT graph of a profile's steps and their
// settle boundaries.
package diag
