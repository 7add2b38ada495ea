package scene

import (
	_ "embed"
	"sync"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/compiler"
)

//go:embed builtin.cue
var builtinSchema []byte

var builtinRegistry = sync.OnceValues(func() (*coerce.Registry, error) {
	return compiler.LoadRegistry(builtinSchema, "builtin.cue")
})

// DefaultRegistry returns the field registry for the built-in kinds. The
// registry is shared and must not be modified.
func DefaultRegistry() (*coerce.Registry, error) {
	return builtinRegistry()
}

// BuiltinSchema returns the CUE source of the built-in registry.
func BuiltinSchema() []byte {
	return append([]byte(nil), builtinSchema...)
}
