// Package auth stores the optional GitHub API token used when the mirror
// listing falls back to the contents API.
//
// Tokens are kept in the system keyring when one is available, otherwise in
// an AES-GCM encrypted file under the user config directory. The
// ROLESYNC_GITHUB_TOKEN and GITHUB_TOKEN environment variables are consulted
// last and are read-only.
package auth
