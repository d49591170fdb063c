package cmd

import (
	"fmt"

	"github.com/smazurov/gotasklist/internal/config"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

// taskFlags are the tasklist options shared by list and watch.
type taskFlags struct {
	verbose       bool
	apps          bool
	services      bool
	modules       bool
	modulePattern string
	system        string
	username      string
	password      string
	filters       []string

	query       string
	queriesFile string
	executable  string
}

func (f *taskFlags) bind(flags *pflag.FlagSet) {
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Show status, user, CPU time and window title")
	flags.BoolVar(&f.apps, "apps", false, "List Store apps")
	flags.BoolVar(&f.services, "svc", false, "List services hosted by each process")
	flags.BoolVarP(&f.modules, "modules", "m", false, "List loaded modules")
	flags.StringVar(&f.modulePattern, "module-pattern", "", "Only modules matching this pattern (implies --modules)")
	flags.StringVarP(&f.system, "system", "s", "", "Remote system to query")
	flags.StringVarP(&f.username, "user", "u", "", "User for the remote system")
	// No shorthand: -p is the server's --port on the root command.
	flags.StringVar(&f.password, "password", "", "Password for the remote system")
	flags.StringArrayVar(&f.filters, "fi", nil, `Filter expression, e.g. "IMAGENAME eq svchost.exe" (repeatable)`)

	flags.StringVarP(&f.query, "query", "q", "", "Run a saved query instead of the option flags")
	flags.StringVar(&f.queriesFile, "queries-file", "queries.toml", "Saved queries file")
	flags.StringVar(&f.executable, "executable", tasklist.DefaultExecutable, "Path to tasklist.exe")
}

// options returns the saved query's options when --query is set, else the
// options built from the flags.
func (f *taskFlags) options(fsys afero.Fs) (string, tasklist.Options, error) {
	if f.query != "" {
		store := config.NewQueryStore(fsys, f.queriesFile)
		if err := store.Load(); err != nil {
			return "", tasklist.Options{}, err
		}
		q, ok := store.Get(f.query)
		if !ok {
			return "", tasklist.Options{}, fmt.Errorf("%w: %s", config.ErrQueryNotFound, f.query)
		}
		return f.query, q.Options, nil
	}

	opts := tasklist.Options{
		Verbose:  f.verbose,
		Apps:     f.apps,
		Services: f.services,
		System:   f.system,
		Username: f.username,
		Password: f.password,
		Filters:  f.filters,
	}
	switch {
	case f.modulePattern != "":
		opts.Modules = tasklist.ModulesMatching(f.modulePattern)
	case f.modules:
		opts.Modules = tasklist.AllModules()
	}
	return "adhoc", opts, nil
}
