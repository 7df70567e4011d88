// Package site defines the typed configuration model for the hosted-site
// variants. Each site type is one member of a closed union; parsing
// applies per-variant defaults and checks required fields before anything
// touches the descriptor store.
package site

import (
	"fmt"
	"strings"
)

// Operation is one of the lifecycle operations of the tool.
type Operation string

const (
	OpCreate  Operation = "create"
	OpDelete  Operation = "delete"
	OpShow    Operation = "show"
	OpStart   Operation = "start"
	OpStop    Operation = "stop"
	OpRestart Operation = "restart"
	OpUpdate  Operation = "update"
	OpLogs    Operation = "logs"
	OpCode    Operation = "code"
)

// Operations lists every valid operation.
var Operations = []Operation{
	OpCreate, OpDelete, OpShow, OpStart, OpStop, OpRestart, OpUpdate, OpLogs, OpCode,
}

// Type tags the members of the site-type union.
type Type string

const (
	TypeStatic   Type = "static_site"
	TypeRedirect Type = "redirect_site"
	TypeWSGI     Type = "wsgi_site"
	TypeDiscord  Type = "discord_bot"
	TypeCompiled Type = "compiled_site"
	TypeProxy    Type = "proxy"
)

// Types lists every member of the union.
var Types = []Type{
	TypeStatic, TypeRedirect, TypeWSGI, TypeDiscord, TypeCompiled, TypeProxy,
}

// DefaultTimeout is the command timeout in seconds unless overridden.
const DefaultTimeout = 30

// Options holds the fields common to every variant and to bare
// administrative invocations.
type Options struct {
	Operation Operation
	Project   string
	Debug     int
	DryRun    bool
	Timeout   int // seconds
}

// Config is one parsed invocation: either a bare *Options or one of the
// variant structs.
type Config interface {
	Common() *Options
	Kind() Type // empty for bare Options
}

func (o *Options) Common() *Options { return o }

// Kind returns the empty type tag: bare options carry no variant.
func (o *Options) Kind() Type { return "" }

// Source holds the fields shared by every variant that deploys code
// from a repository.
type Source struct {
	Repo        string
	Username    string
	ProjectDir  string
	CheckoutCmd string
	RestartCmd  string
}

// Static is a static site served from a checked-out repository.
type Static struct {
	Options
	Source
	Hostname string
}

func (s *Static) Kind() Type { return TypeStatic }

// Redirect redirects one hostname to another.
type Redirect struct {
	Options
	Hostname string
	Target   string
}

func (s *Redirect) Kind() Type { return TypeRedirect }

// WSGI is a Python WSGI application site.
type WSGI struct {
	Options
	Source
	Hostname string
}

func (s *WSGI) Kind() Type { return TypeWSGI }

// DiscordBot is a bot process with no vhost of its own.
type DiscordBot struct {
	Options
	Source
}

func (s *DiscordBot) Kind() Type { return TypeDiscord }

// Compiled is a compiled service fronted by a reverse proxy on a local port.
type Compiled struct {
	Options
	Source
	Hostname string
	Port     int
}

func (s *Compiled) Kind() Type { return TypeCompiled }

// Proxy is a bare reverse proxy to a local port.
type Proxy struct {
	Options
	Hostname string
	Port     int
}

func (s *Proxy) Kind() Type { return TypeProxy }

// Fields carries the raw, possibly-empty variant flag values from the CLI.
type Fields struct {
	Hostname    string
	Repo        string
	Username    string
	ProjectDir  string
	Target      string
	Port        int
	CheckoutCmd string
	RestartCmd  string
}

// ValidationError reports missing required fields or an invalid value.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// DefaultHostname computes the hostname defaulted from a project name.
func DefaultHostname(project, domain string) string {
	return project + "." + domain
}

// Bare validates the common fields for a non-create operation.
// Variant fields are not needed: the variant is recovered later from the
// stored descriptor, not from the command line.
func Bare(opts Options) (*Options, error) {
	if err := checkCommon(&opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Parse builds the variant config for a create operation. Defaulting is
// deterministic and computed purely from the project name and the domain
// constant; no I/O happens here.
func Parse(opts Options, tag Type, fields Fields, domain string) (Config, error) {
	if err := checkCommon(&opts); err != nil {
		return nil, err
	}

	switch tag {
	case TypeStatic:
		src, missing := sourceFields(opts.Project, fields)
		if len(missing) > 0 {
			return nil, &ValidationError{Missing: missing}
		}
		return &Static{
			Options:  opts,
			Source:   src,
			Hostname: hostnameOrDefault(fields.Hostname, opts.Project, domain),
		}, nil

	case TypeRedirect:
		if fields.Target == "" {
			return nil, &ValidationError{Missing: []string{"--to-hostname"}}
		}
		return &Redirect{
			Options:  opts,
			Hostname: hostnameOrDefault(fields.Hostname, opts.Project, domain),
			Target:   fields.Target,
		}, nil

	case TypeWSGI:
		src, missing := sourceFields(opts.Project, fields)
		if len(missing) > 0 {
			return nil, &ValidationError{Missing: missing}
		}
		return &WSGI{
			Options:  opts,
			Source:   src,
			Hostname: hostnameOrDefault(fields.Hostname, opts.Project, domain),
		}, nil

	case TypeDiscord:
		src, missing := sourceFields(opts.Project, fields)
		if len(missing) > 0 {
			return nil, &ValidationError{Missing: missing}
		}
		return &DiscordBot{Options: opts, Source: src}, nil

	case TypeCompiled:
		src, missing := sourceFields(opts.Project, fields)
		if fields.Port == 0 {
			missing = append(missing, "--port")
		}
		if len(missing) > 0 {
			return nil, &ValidationError{Missing: missing}
		}
		return &Compiled{
			Options:  opts,
			Source:   src,
			Hostname: hostnameOrDefault(fields.Hostname, opts.Project, domain),
			Port:     fields.Port,
		}, nil

	case TypeProxy:
		var missing []string
		if fields.Hostname == "" {
			missing = append(missing, "--hostname")
		}
		if fields.Port == 0 {
			missing = append(missing, "--port")
		}
		if len(missing) > 0 {
			return nil, &ValidationError{Missing: missing}
		}
		return &Proxy{
			Options:  opts,
			Hostname: fields.Hostname,
			Port:     fields.Port,
		}, nil
	}

	return nil, &ValidationError{Reason: fmt.Sprintf("unknown site type %q", tag)}
}

func checkCommon(opts *Options) error {
	if opts.Project == "" {
		return &ValidationError{Reason: "project name cannot be empty"}
	}
	if opts.Debug < 0 {
		return &ValidationError{Reason: fmt.Sprintf("debug level must not be negative, got %d", opts.Debug)}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Timeout < 0 {
		return &ValidationError{Reason: fmt.Sprintf("timeout must be a positive number of seconds, got %d", opts.Timeout)}
	}
	return nil
}

// sourceFields applies the shared defaulting rules for code-deploying
// variants: username and project directory default to the project name.
func sourceFields(project string, fields Fields) (Source, []string) {
	var missing []string
	if fields.Repo == "" {
		missing = append(missing, "--github")
	}

	src := Source{
		Repo:        fields.Repo,
		Username:    fields.Username,
		ProjectDir:  fields.ProjectDir,
		CheckoutCmd: fields.CheckoutCmd,
		RestartCmd:  fields.RestartCmd,
	}
	if src.Username == "" {
		src.Username = project
	}
	if src.ProjectDir == "" {
		src.ProjectDir = project
	}

	return src, missing
}

func hostnameOrDefault(hostname, project, domain string) string {
	if hostname == "" {
		return DefaultHostname(project, domain)
	}
	return hostname
}
