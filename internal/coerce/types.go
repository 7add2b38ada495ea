package coerce

import (
	"context"
	"errors"
	"fmt"
)

// TypeKind enumerates the destination field types coercion understands.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeString
	TypeBool
	TypeInt
	TypeLong
	TypeUint
	TypeFloat
	TypeDouble
	TypeEnum
	TypeVector2
	TypeVector2Int
	TypeVector3
	TypeVector3Int
	TypeVector4
	TypeQuaternion
	TypeColor
	TypeAsset
	TypeAssetArray
)

var typeNames = map[TypeKind]string{
	TypeString:     "string",
	TypeBool:       "bool",
	TypeInt:        "int",
	TypeLong:       "long",
	TypeUint:       "uint",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeEnum:       "enum",
	TypeVector2:    "vector2",
	TypeVector2Int: "vector2int",
	TypeVector3:    "vector3",
	TypeVector3Int: "vector3int",
	TypeVector4:    "vector4",
	TypeQuaternion: "quaternion",
	TypeColor:      "color",
	TypeAsset:      "asset",
	TypeAssetArray: "asset[]",
}

func (k TypeKind) String() string {
	if name, ok := typeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// ParseTypeKind maps a schema type name such as "vector3" to its TypeKind.
func ParseTypeKind(name string) (TypeKind, bool) {
	for k, n := range typeNames {
		if n == name {
			return k, true
		}
	}
	return TypeInvalid, false
}

// EnumBacking is the representation an enum field is written in.
type EnumBacking string

const (
	EnumBackingInt    EnumBacking = "int"
	EnumBackingString EnumBacking = "string"
)

// EnumType describes an enumerated field.
type EnumType struct {
	Name    string
	Backing EnumBacking
	Values  map[string]int64 // symbolic name -> integer value
}

// nameOf returns the symbolic name for value, or "" if none is declared.
// Aliases resolve to the lexically smallest name.
func (e *EnumType) nameOf(value int64) string {
	found := ""
	for name, v := range e.Values {
		if v == value && (found == "" || name < found) {
			found = name
		}
	}
	return found
}

// FieldType is the declared type of one field of one kind.
type FieldType struct {
	Kind      TypeKind
	AssetKind string    // TypeAsset and TypeAssetArray only
	Enum      *EnumType // TypeEnum only
}

func (ft FieldType) String() string {
	switch ft.Kind {
	case TypeAsset, TypeAssetArray:
		return fmt.Sprintf("%s<%s>", ft.Kind, ft.AssetKind)
	case TypeEnum:
		if ft.Enum != nil {
			return fmt.Sprintf("enum<%s>", ft.Enum.Name)
		}
	}
	return ft.Kind.String()
}

// Accepts reports whether v has the Go type Coerce produces for ft.
func (ft FieldType) Accepts(v any) bool {
	switch ft.Kind {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt:
		_, ok := v.(int32)
		return ok
	case TypeLong:
		_, ok := v.(int64)
		return ok
	case TypeUint:
		_, ok := v.(uint32)
		return ok
	case TypeFloat:
		_, ok := v.(float32)
		return ok
	case TypeDouble:
		_, ok := v.(float64)
		return ok
	case TypeEnum:
		_, ok := v.(EnumValue)
		return ok
	case TypeVector2:
		_, ok := v.(Vector2)
		return ok
	case TypeVector2Int:
		_, ok := v.(Vector2Int)
		return ok
	case TypeVector3:
		_, ok := v.(Vector3)
		return ok
	case TypeVector3Int:
		_, ok := v.(Vector3Int)
		return ok
	case TypeVector4:
		_, ok := v.(Vector4)
		return ok
	case TypeQuaternion:
		_, ok := v.(Quaternion)
		return ok
	case TypeColor:
		_, ok := v.(Color)
		return ok
	case TypeAsset:
		_, ok := v.(Asset)
		return ok
	case TypeAssetArray:
		_, ok := v.([]Asset)
		return ok
	}
	return false
}

// Composite field values.
type (
	Vector2    struct{ X, Y float32 }
	Vector2Int struct{ X, Y int32 }
	Vector3    struct{ X, Y, Z float32 }
	Vector3Int struct{ X, Y, Z int32 }
	Vector4    struct{ X, Y, Z, W float32 }
	Quaternion struct{ X, Y, Z, W float32 }
	Color      struct{ R, G, B, A float32 }
)

// EnumValue is a coerced enum: the integer value plus its symbolic name
// when the schema declares one.
type EnumValue struct {
	Type  string
	Name  string
	Value int64
}

// Asset is a live handle to an external asset returned by an AssetResolver.
type Asset struct {
	ID     string
	Kind   string
	Size   int64
	Digest string
}

// AssetResolver resolves opaque asset identifiers to live assets.
type AssetResolver interface {
	Resolve(ctx context.Context, id, kind string) (Asset, error)
}

// AssetResolverFunc adapts a function to AssetResolver.
type AssetResolverFunc func(ctx context.Context, id, kind string) (Asset, error)

func (f AssetResolverFunc) Resolve(ctx context.Context, id, kind string) (Asset, error) {
	return f(ctx, id, kind)
}

var (
	// ErrAssetNotFound is returned by resolvers when no asset has the id.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrUnsupportedAssetKind is returned by resolvers that cannot produce
	// the requested asset kind.
	ErrUnsupportedAssetKind = errors.New("unsupported asset kind")
)
