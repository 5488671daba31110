// Package mirror reads the GitHub static-asset mirror: the role_pile.json
// manifest used for update checks and image listings, and the contents API
// listing used when the manifest is unavailable.
package mirror
