// Package ui renders command output for people: colored messages and the
// end-of-run summary. Logs go through pkg/logger instead.
package ui
