// Package store persists one JSON deployment descriptor per project.
// The file system is the sole source of truth: every invocation of the
// tool is a single stateless transaction against this directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/isotopp/deploy/internal/security"
	"github.com/isotopp/deploy/pkg/fileutil"
)

var (
	// ErrNotFound is returned when no descriptor exists for a project.
	ErrNotFound = fmt.Errorf("project not found")

	// ErrAlreadyExists is returned when create hits an existing descriptor.
	ErrAlreadyExists = fmt.Errorf("project already exists")

	// ErrInvalidDescriptor is returned when a descriptor fails an
	// invariant check at creation time.
	ErrInvalidDescriptor = fmt.Errorf("invalid descriptor")
)

const (
	// DefaultCheckoutCmd updates a project's working copy.
	DefaultCheckoutCmd = "git pull --ff-only"

	// DefaultRestartCmd restarts the serving process after a checkout.
	DefaultRestartCmd = "sudo systemctl stop apache2; sudo systemctl start apache2"
)

// Descriptor describes how to check out and restart a project's code.
// Fields are declared in sorted key order; the serialized form keeps
// that order and ends with a newline.
type Descriptor struct {
	CheckoutCmd string `json:"checkout_cmd"`
	Hostname    string `json:"hostname"`
	ProjectDir  string `json:"projectdir"`
	RestartCmd  string `json:"restart_cmd"`
	Unixuser    string `json:"unixuser"`
}

// UserLookup checks whether a user exists in the OS user database.
type UserLookup interface {
	Lookup(name string) error
}

// OSUserLookup consults the real user database.
type OSUserLookup struct{}

func (OSUserLookup) Lookup(name string) error {
	if _, err := user.Lookup(name); err != nil {
		return fmt.Errorf("user %s does not exist: %w", name, err)
	}
	return nil
}

// Store is a directory of descriptor files, one per project.
type Store struct {
	dir    string
	domain string
	users  UserLookup
}

// New creates a store over the given directory, validating hostnames
// against the given domain and users against the OS user database.
func New(dir, domain string) *Store {
	return NewWithLookup(dir, domain, OSUserLookup{})
}

// NewWithLookup is New with an injectable user database, for tests.
func NewWithLookup(dir, domain string, users UserLookup) *Store {
	return &Store{dir: dir, domain: domain, users: users}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Domain returns the domain suffix descriptors are validated against.
func (s *Store) Domain() string { return s.domain }

func (s *Store) path(project string) string {
	return filepath.Join(s.dir, project)
}

// Create validates the descriptor invariants and writes it as a new file.
// Empty command fields receive their fixed defaults before writing.
//
// The existence check and the write are two steps; two concurrent creates
// for the same project can both observe "absent" before either writes.
// That race is an accepted limitation of the single-file store.
func (s *Store) Create(project string, d Descriptor) error {
	if err := security.ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	if d.CheckoutCmd == "" {
		d.CheckoutCmd = DefaultCheckoutCmd
	}
	if d.RestartCmd == "" {
		d.RestartCmd = DefaultRestartCmd
	}

	if err := s.validate(&d); err != nil {
		return err
	}

	path := s.path(project)
	if fileutil.FileExists(path) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, project)
	}

	data, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize descriptor for %s: %w", project, err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, project)
		}
		return fmt.Errorf("failed to create descriptor for %s: %w", project, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write descriptor for %s: %w", project, err)
	}

	return nil
}

// validate enforces the creation-time invariants. Loaded descriptors are
// never re-validated.
func (s *Store) validate(d *Descriptor) error {
	if !strings.HasSuffix(d.Hostname, s.domain) {
		return fmt.Errorf("%w: hostname %q must end in %q", ErrInvalidDescriptor, d.Hostname, s.domain)
	}

	if err := security.ValidateUnixUser(d.Unixuser); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if err := s.users.Lookup(d.Unixuser); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	if !fileutil.DirExists(d.ProjectDir) {
		return fmt.Errorf("%w: projectdir %q is not a directory", ErrInvalidDescriptor, d.ProjectDir)
	}

	return nil
}

// Load reads the stored descriptor for a project verbatim.
func (s *Store) Load(project string) (*Descriptor, error) {
	if err := security.ValidateProjectName(project); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, project)
	}

	data, err := os.ReadFile(s.path(project))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, project)
		}
		return nil, fmt.Errorf("failed to read descriptor for %s: %w", project, err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor for %s: %w", project, err)
	}

	return &d, nil
}

// Delete removes the descriptor file for a project.
func (s *Store) Delete(project string) error {
	if err := security.ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, project)
	}

	path := s.path(project)
	if !fileutil.FileExists(path) {
		return fmt.Errorf("%w: %s", ErrNotFound, project)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete descriptor for %s: %w", project, err)
	}

	return nil
}

// List returns the names of all stored projects, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}
