// Package httpclient wraps net/http for the upstream calls made during a
// sync: JSON listings from GitHub and hakush.in, and image downloads.
//
// Non-200 responses are mapped to typed errors from rolesync/pkg/errors so
// callers can tell a 404 from a server error or a timeout.
package httpclient
