// Package tickets provides the per-tenant ticket provider layer: ownership
// metadata embedded in ticket bodies, OAuth token refresh, provider
// construction and caching, and the Jira/Zendesk REST implementations.
package tickets

import (
	"fmt"
	"regexp"
	"strings"
)

// The tracker has no concept of the portal's external user identity, so the
// owner is embedded as trailing text in ticket and comment bodies and parsed
// back out. The marker format is load-bearing for webhook processing; keep
// EmbedOwner, ExtractOwner and Sanitize in sync.
const (
	markerSeparator  = "\n\n----\n"
	ownerIDLabel     = "Owner ID:"
	displayNameLabel = "Display Name:"
)

var (
	// Owner ids are snowflake-style numeric ids; the bounded length range
	// avoids partial matches against incidental digit runs.
	ownerIDPattern = regexp.MustCompile(`Owner ID:\s*(\d{15,20})`)

	// Fallback for bodies where the marker got mangled by the tracker's rich
	// text editing: any standalone id-length digit run. Ambiguous if the id
	// appears in user-authored text, which is why the marker is preferred.
	bareIDPattern = regexp.MustCompile(`\b(\d{15,20})\b`)

	// Internal-field label lines, stripped individually when the separator
	// itself is absent.
	labelLinePattern = regexp.MustCompile(`(?m)^(Owner ID|Display Name):[^\n]*\n?`)
)

// EmbedOwner appends the ownership marker to a ticket or comment body.
func EmbedOwner(body, ownerID, displayName string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString(markerSeparator)
	if displayName != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", displayNameLabel, displayName))
	}
	b.WriteString(fmt.Sprintf("%s %s", ownerIDLabel, ownerID))
	return b.String()
}

// ExtractOwner returns the owner id embedded in a body, or "" when the body
// carries no recognizable marker (unowned/unverifiable).
func ExtractOwner(body string) string {
	if m := ownerIDPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := bareIDPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// Sanitize strips the ownership marker before a body leaves the subsystem.
// This is a data-leak prevention invariant: every description and comment
// body returned to callers must pass through here. When the separator is
// missing, known label lines are stripped individually.
func Sanitize(body string) string {
	if idx := strings.Index(body, markerSeparator); idx >= 0 {
		return strings.TrimRight(body[:idx], " \t\n")
	}
	cleaned := labelLinePattern.ReplaceAllString(body, "")
	return strings.TrimRight(cleaned, " \t\n")
}
