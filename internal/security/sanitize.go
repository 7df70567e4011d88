package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	projectPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unixuserPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// ValidateProjectName ensures a project identifier is safe for use as a
// file name in the descriptor store. Identifiers become paths directly,
// so anything that could traverse out of the store directory is rejected.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("project name cannot start with '-' or '.'")
	}
	if !projectPattern.MatchString(name) {
		return fmt.Errorf("project name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)")
	}
	return nil
}

// ValidateUnixUser ensures a username is safe to hand to sudo -u.
// Whether the user actually exists in the user database is checked by
// the store, not here.
func ValidateUnixUser(name string) error {
	if name == "" {
		return fmt.Errorf("unix user cannot be empty")
	}
	if !unixuserPattern.MatchString(name) {
		return fmt.Errorf("unix user contains invalid characters")
	}
	return nil
}
