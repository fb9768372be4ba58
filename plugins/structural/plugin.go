// Package structural provides filters that only change the shape of the data
// graph: creating, copying, renaming and deleting objects. Their work happens
// in the actions returned by preflight; Execute has nothing left to do.
package structural

import (
	"latticecore/internal/core"
	"latticecore/pkg/filterapi"
)

// Plugin registers the structural filters.
type Plugin struct{}

// New constructs a structural plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "structural" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.1.0" }

// Register contributes every structural filter.
func (Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterFilter(func() filterapi.Filter { return CreateDataArray{} })
	registry.RegisterFilter(func() filterapi.Filter { return CreateAttributeMatrix{} })
	registry.RegisterFilter(func() filterapi.Filter { return CreateDataGroup{} })
	registry.RegisterFilter(func() filterapi.Filter { return DeleteData{} })
	registry.RegisterFilter(func() filterapi.Filter { return CopyDataObject{} })
	registry.RegisterFilter(func() filterapi.Filter { return RenameDataObject{} })
	registry.RegisterFilter(func() filterapi.Filter { return CreateGeometry{} })
	return nil
}
