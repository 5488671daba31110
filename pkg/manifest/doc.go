// Package manifest builds role.json, the consolidated character list the
// front-end reads. It joins the character file with the portraits present
// on disk and always rewrites the output in full.
package manifest
