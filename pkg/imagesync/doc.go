// Package imagesync keeps the local portrait directory in step with the
// upstream sources.
//
// Primary copies files from the GitHub mirror, skipping any whose local size
// already matches the listing. Fallback runs when the primary pass failed or
// downloaded nothing: it fetches portraits still missing from hakush.in,
// retrying each up to three times, and converts them to PNG.
package imagesync
