// Package plugins hosts the filter plugin subpackages. It holds no runtime
// code of its own; the architecture test next to this file checks that no
// plugin imports an infrastructure driver directly.
//
// Bundled plugins:
//
//	structural  create, copy, rename and delete graph objects and geometries
//	meshops     triangle areas and in-place array scaling
//	rawexport   raw binary export to a file or an artifact store
package plugins
