// Package storage manages the local image directory and provides the atomic
// write used for every file the sync produces.
package storage
