package tools

import (
	_ "embed"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// LoadBuiltinCatalog registers the descriptors shipped with the binary.
func (r *Registry) LoadBuiltinCatalog() error {
	return r.LoadCatalog("catalog.yaml", builtinCatalog)
}
