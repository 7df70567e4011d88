// Package access gates every invocation on the identity of the calling
// OS user. The tool is installed on a shared host; only the operators on
// the allow-list may touch descriptors or run deployments.
package access

import (
	"fmt"
	"os/user"
	"strings"
)

// ErrNotAllowed is returned when the invoking user is not on the allow-list.
var ErrNotAllowed = fmt.Errorf("user not allowed")

// Guard checks invoking identities against a fixed allow-list.
type Guard struct {
	allowed []string
}

// NewGuard creates a guard for the given allow-list.
func NewGuard(allowed []string) *Guard {
	return &Guard{allowed: allowed}
}

// Authorize returns the identity unchanged if it is on the allow-list.
// The error names both the rejected identity and the allowed set so the
// operator knows who to ask for access.
func (g *Guard) Authorize(identity string) (string, error) {
	for _, u := range g.allowed {
		if u == identity {
			return identity, nil
		}
	}

	return "", fmt.Errorf("%w: %q (allowed: %s)", ErrNotAllowed, identity, strings.Join(g.allowed, ", "))
}

// CurrentUser returns the username of the invoking OS user.
func CurrentUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine current user: %w", err)
	}
	return u.Username, nil
}
