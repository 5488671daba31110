package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteTokenGuide prints how to create a GitHub token for the mirror
func WriteTokenGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "GITHUB TOKEN")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A token is optional. Without one the contents API allows 60 requests")
	fmt.Fprintln(w, "per hour, which is enough unless the manifest listing keeps failing.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Open https://github.com/settings/personal-access-tokens/new")
	fmt.Fprintln(w, "  2. Choose \"Public repositories (read-only)\"")
	fmt.Fprintln(w, "  3. Generate the token and paste it at the prompt")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The token can also be supplied through %s.\n", strings.Join(TokenEnvVars, " or "))
	fmt.Fprintln(w, "It is only sent to the GitHub API host.")
	fmt.Fprintln(w, line)
}
