package tasklist

import (
	"fmt"
	"slices"
	"strings"
)

// Flags understood by tasklist.exe.
const (
	FlagNoHeader = "/nh"
	FlagFormat   = "/fo"
	FlagVerbose  = "/v"
	FlagApps     = "/apps"
	FlagModules  = "/m"
	FlagServices = "/svc"
	FlagSystem   = "/s"
	FlagUsername = "/u"
	FlagPassword = "/p"
	FlagFilter   = "/fi"

	formatCSV = "csv"
)

// remoteUnsupportedFilters are filter fields tasklist.exe rejects when
// querying a remote system.
var remoteUnsupportedFilters = []string{"windowtitle", "status"}

// Options selects what tasklist.exe lists and where.
type Options struct {
	// Verbose adds status, username, CPU time and window title columns.
	// Cannot be combined with Services or Modules.
	Verbose bool `toml:"verbose" json:"verbose,omitempty"`
	// Apps lists Store apps and their package names.
	Apps bool `toml:"apps" json:"apps,omitempty"`
	// Services lists the services hosted by each process.
	Services bool `toml:"services" json:"services,omitempty"`
	// Modules lists loaded DLLs. Nil means not requested, an empty
	// string lists every module, anything else is a module name pattern.
	Modules *string `toml:"modules" json:"modules,omitempty"`

	// System, Username and Password target a remote machine. They must be
	// set together.
	System   string `toml:"system" json:"system,omitempty"`
	Username string `toml:"username" json:"username,omitempty"`
	Password string `toml:"password" json:"-"`

	// Filters are "field operator value" expressions passed with /fi.
	Filters []string `toml:"filters" json:"filters,omitempty"`
}

// AllModules returns a Modules value that lists every loaded module.
func AllModules() *string {
	s := ""
	return &s
}

// ModulesMatching returns a Modules value for the given pattern.
func ModulesMatching(pattern string) *string {
	return &pattern
}

// Remote reports whether all remote connection fields are set.
func (o Options) Remote() bool {
	return o.System != "" && o.Username != "" && o.Password != ""
}

// Plan is a validated invocation: the argument vector and the schema of the
// rows it will produce.
type Plan struct {
	Args   []string
	Schema Schema
}

// Redacted returns the arguments with the password value masked.
func (p *Plan) Redacted() []string {
	out := slices.Clone(p.Args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == FlagPassword {
			out[i+1] = "***"
			i++
		}
	}
	return out
}

// Validate checks option conflicts without considering the platform.
func (o Options) Validate() error {
	if o.Verbose && (o.Services || o.Modules != nil) {
		return newConfigError(CodeVerboseConflict, "verbose cannot be combined with services or modules")
	}

	if o.Modules != nil && o.Services {
		return newConfigError(CodeModulesServicesConflict, "services and modules cannot be used together")
	}

	set := 0
	for _, v := range []string{o.System, o.Username, o.Password} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return newConfigError(CodeIncompleteRemote, "system, username and password must be set together")
	}

	if o.Remote() {
		for _, filter := range o.Filters {
			field := strings.ToLower(filterField(filter))
			if slices.Contains(remoteUnsupportedFilters, field) {
				return newConfigError(CodeRemoteFilterNotSupported,
					fmt.Sprintf("filter on %q is not supported for remote systems", field))
			}
		}
	}

	return nil
}

// filterField returns the leading token of a filter expression.
func filterField(filter string) string {
	field, _, _ := strings.Cut(strings.TrimSpace(filter), " ")
	return field
}

// Plan validates the options for the given GOOS and builds the argument
// vector.
func (o Options) Plan(goos string) (*Plan, error) {
	if goos != "windows" {
		return nil, ErrUnsupportedPlatform
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &Plan{Args: o.args(), Schema: selectSchema(o)}, nil
}

// args builds the argument vector. Order follows tasklist.exe's grammar.
func (o Options) args() []string {
	args := []string{FlagNoHeader, FlagFormat, formatCSV}

	if o.Verbose {
		args = append(args, FlagVerbose)
	}
	if o.Apps {
		args = append(args, FlagApps)
	}
	if o.Modules != nil {
		args = append(args, FlagModules)
		if *o.Modules != "" {
			args = append(args, *o.Modules)
		}
	}
	if o.Services {
		args = append(args, FlagServices)
	}

	if o.Remote() {
		args = append(args,
			FlagSystem, o.System,
			FlagUsername, o.Username,
			FlagPassword, o.Password,
		)
	}

	for _, filter := range o.Filters {
		args = append(args, FlagFilter, filter)
	}

	return args
}
