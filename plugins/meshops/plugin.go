// Package meshops provides numeric filters over geometries and arrays.
package meshops

import (
	"latticecore/internal/core"
	"latticecore/pkg/filterapi"
)

// Plugin registers the mesh and array filters.
type Plugin struct{}

// New constructs a meshops plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "meshops" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register contributes the filters.
func (Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterFilter(func() filterapi.Filter { return ComputeTriangleAreas{} })
	registry.RegisterFilter(func() filterapi.Filter { return ScaleArray{} })
	return nil
}
