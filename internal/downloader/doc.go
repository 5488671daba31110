// Package downloader runs a sequential queue of file downloads with optional
// retry, post-processing and pacing.
package downloader
