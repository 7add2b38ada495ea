package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/ryohey/warp/internal/coerce"
)

// LoadRegistry compiles CUE source into a field registry.
//
// The source declares kinds and, optionally, enums:
//
//	kinds: MeshFilter: fields: mesh: {type: "asset", asset: "Mesh"}
//	kinds: GameObject: {node: true, fields: name: "string"}
//	kinds: Rigidbody: {unique: true, fields: mass: "float"}
//	enums: LightType: {backing: "int", values: {Spot: 0, Directional: 1}}
//
// A field is either a type name or a struct with a type plus its asset kind
// or enum name.
func LoadRegistry(src []byte, filename string) (*coerce.Registry, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRegistry(v)
}

// LoadRegistryFile reads and compiles a CUE registry file.
func LoadRegistryFile(path string) (*coerce.Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadRegistry(src, path)
}

// CompileRegistry builds a registry from an evaluated CUE value.
func CompileRegistry(v cue.Value) (*coerce.Registry, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	enums, err := parseEnums(v.LookupPath(cue.ParsePath("enums")))
	if err != nil {
		return nil, err
	}

	kindsVal := v.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return nil, &CompileError{Field: "kinds", Message: "kinds is required", Pos: v.Pos()}
	}

	reg := coerce.NewRegistry()
	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		kind := iter.Label()
		kindVal := iter.Value()

		reg.DefineKind(kind)
		if nodeVal := kindVal.LookupPath(cue.ParsePath("node")); nodeVal.Exists() {
			isNode, err := nodeVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if isNode {
				reg.MarkNode(kind)
			}
		}

		if uniqueVal := kindVal.LookupPath(cue.ParsePath("unique")); uniqueVal.Exists() {
			unique, err := uniqueVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if unique {
				reg.MarkUnique(kind)
			}
		}

		fieldsVal := kindVal.LookupPath(cue.ParsePath("fields"))
		if !fieldsVal.Exists() {
			continue
		}
		fieldIter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for fieldIter.Next() {
			name := fieldIter.Label()
			ft, err := parseFieldType(kind+"."+name, fieldIter.Value(), enums)
			if err != nil {
				return nil, err
			}
			reg.Define(kind, name, ft)
		}
	}
	return reg, nil
}

func parseEnums(v cue.Value) (map[string]*coerce.EnumType, error) {
	enums := make(map[string]*coerce.EnumType)
	if !v.Exists() {
		return enums, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		ev := iter.Value()
		enum := &coerce.EnumType{Name: name, Backing: coerce.EnumBackingInt, Values: make(map[string]int64)}

		if backingVal := ev.LookupPath(cue.ParsePath("backing")); backingVal.Exists() {
			backing, err := backingVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			enum.Backing = coerce.EnumBacking(backing)
		}

		if valuesVal := ev.LookupPath(cue.ParsePath("values")); valuesVal.Exists() {
			valIter, err := valuesVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for valIter.Next() {
				n, err := valIter.Value().Int64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				enum.Values[valIter.Label()] = n
			}
		}
		enums[name] = enum
	}
	return enums, nil
}

func parseFieldType(field string, v cue.Value, enums map[string]*coerce.EnumType) (coerce.FieldType, error) {
	var typeName, assetKind, enumName string

	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return coerce.FieldType{}, formatCUEError(err)
		}
		typeName = s
	case cue.StructKind:
		var err error
		if typeName, err = optionalString(v, "type"); err != nil {
			return coerce.FieldType{}, err
		}
		if assetKind, err = optionalString(v, "asset"); err != nil {
			return coerce.FieldType{}, err
		}
		if enumName, err = optionalString(v, "enum"); err != nil {
			return coerce.FieldType{}, err
		}
	default:
		return coerce.FieldType{}, &CompileError{Field: field, Message: "must be a type name or a struct with a type", Pos: v.Pos()}
	}

	kind, ok := coerce.ParseTypeKind(typeName)
	if !ok {
		return coerce.FieldType{}, &CompileError{Field: field, Message: fmt.Sprintf("unknown type %q", typeName), Pos: v.Pos()}
	}
	ft := coerce.FieldType{Kind: kind}

	switch kind {
	case coerce.TypeAsset, coerce.TypeAssetArray:
		if assetKind == "" {
			return coerce.FieldType{}, &CompileError{Field: field, Message: "asset fields need an asset kind", Pos: v.Pos()}
		}
		ft.AssetKind = assetKind
	case coerce.TypeEnum:
		enum, ok := enums[enumName]
		if !ok {
			return coerce.FieldType{}, &CompileError{Field: field, Message: fmt.Sprintf("unknown enum %q", enumName), Pos: v.Pos()}
		}
		ft.Enum = enum
	}
	return ft, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	sub := v.LookupPath(cue.ParsePath(path))
	if !sub.Exists() {
		return "", nil
	}
	s, err := sub.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
