package tasklist

import "slices"

// Schema identifies the CSV column layout tasklist.exe produces for a given
// combination of listing options.
type Schema int

// Schemas, one per listing mode.
const (
	SchemaDefault Schema = iota
	SchemaDefaultVerbose
	SchemaApps
	SchemaAppsVerbose
	SchemaModules
	SchemaServices
)

// Column names as they appear in Task.Fields and JSON output.
const (
	ColImageName     = "imageName"
	ColPID           = "pid"
	ColSessionName   = "sessionName"
	ColSessionNumber = "sessionNumber"
	ColMemUsage      = "memUsage"
	ColStatus        = "status"
	ColUsername      = "username"
	ColCPUTime       = "cpuTime"
	ColWindowTitle   = "windowTitle"
	ColPackageName   = "packageName"
	ColModules       = "modules"
	ColServices      = "services"
)

var (
	defaultColumns     = []string{ColImageName, ColPID, ColSessionName, ColSessionNumber, ColMemUsage}
	verboseColumns     = concat(defaultColumns, ColStatus, ColUsername, ColCPUTime, ColWindowTitle)
	appsColumns        = []string{ColImageName, ColPID, ColMemUsage, ColPackageName}
	appsVerboseColumns = concat(verboseColumns, ColPackageName)
	modulesColumns     = []string{ColImageName, ColPID, ColModules}
	servicesColumns    = []string{ColImageName, ColPID, ColServices}
)

func concat(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// AllSchemas lists every schema in declaration order.
var AllSchemas = []Schema{
	SchemaDefault,
	SchemaDefaultVerbose,
	SchemaApps,
	SchemaAppsVerbose,
	SchemaModules,
	SchemaServices,
}

// String returns the schema name.
func (s Schema) String() string {
	switch s {
	case SchemaDefault:
		return "default"
	case SchemaDefaultVerbose:
		return "defaultVerbose"
	case SchemaApps:
		return "apps"
	case SchemaAppsVerbose:
		return "appsVerbose"
	case SchemaModules:
		return "modules"
	case SchemaServices:
		return "services"
	}
	return "unknown"
}

// Columns returns the ordered column names. The returned slice must not be
// modified.
func (s Schema) Columns() []string {
	switch s {
	case SchemaDefault:
		return defaultColumns
	case SchemaDefaultVerbose:
		return verboseColumns
	case SchemaApps:
		return appsColumns
	case SchemaAppsVerbose:
		return appsVerboseColumns
	case SchemaModules:
		return modulesColumns
	case SchemaServices:
		return servicesColumns
	}
	return nil
}

// Verbose reports whether the schema carries the /v columns.
func (s Schema) Verbose() bool {
	return s == SchemaDefaultVerbose || s == SchemaAppsVerbose
}

// Has reports whether col is part of the schema.
func (s Schema) Has(col string) bool {
	return slices.Contains(s.Columns(), col)
}

// selectSchema maps listing options to a schema. Verbose is only combined
// with the default and apps bases; validation rejects the other pairings.
func selectSchema(o Options) Schema {
	switch {
	case o.Apps:
		if o.Verbose {
			return SchemaAppsVerbose
		}
		return SchemaApps
	case o.Modules != nil:
		return SchemaModules
	case o.Services:
		return SchemaServices
	case o.Verbose:
		return SchemaDefaultVerbose
	}
	return SchemaDefault
}
