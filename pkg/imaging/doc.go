// Package imaging normalizes downloaded portraits to RGB PNG.
package imaging
