// Package rawexport provides a filter that dumps arrays as raw binary to a
// file or an artifact store.
package rawexport

import (
	"latticecore/internal/artifact"
	"latticecore/internal/core"
	"latticecore/pkg/filterapi"
)

// Plugin registers WriteRawBinary. Artifacts, when set, backs the artifact
// destination of the filter.
type Plugin struct {
	Artifacts artifact.Store
}

// New constructs a rawexport plugin. st may be nil, in which case only file
// output is available.
func New(st artifact.Store) Plugin {
	return Plugin{Artifacts: st}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "rawexport" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register contributes the filter.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	st := p.Artifacts
	registry.RegisterFilter(func() filterapi.Filter { return WriteRawBinary{Artifacts: st} })
	return nil
}
