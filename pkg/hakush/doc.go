// Package hakush talks to the hakush.in Wuthering Waves API: it builds the
// localized character roster written to id2role.json and maps image
// references to the WebP assets used as the fallback image source.
package hakush
