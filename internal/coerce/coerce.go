package coerce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ryohey/warp/internal/ir"
)

// SkipError is the non-fatal FieldCoercionSkipped diagnostic: the value
// cannot be assigned to the field and the field is left untouched.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "field coercion skipped: " + e.Reason
}

// Skipf builds a SkipError.
func Skipf(format string, args ...any) *SkipError {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip returns true if err is a *SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// Coerce converts v to the Go value expected by a field of type ft.
//
// It returns a *SkipError when v cannot be used for ft. Asset lookups go to
// assets; their failures are returned as-is (wrapping ErrAssetNotFound or
// ErrUnsupportedAssetKind) and nothing is produced.
func Coerce(ctx context.Context, v ir.IRValue, ft FieldType, assets AssetResolver) (any, error) {
	switch ft.Kind {
	case TypeString:
		s, ok := scalarText(v)
		if !ok {
			return nil, Skipf("expected a scalar for string, got %s", describe(v))
		}
		return s, nil

	case TypeBool:
		if b, ok := v.(ir.IRBool); ok {
			return bool(b), nil
		}
		n, err := parseInt(v, 64)
		if err != nil {
			return nil, err
		}
		return n != 0, nil

	case TypeInt:
		n, err := parseInt(v, 32)
		if err != nil {
			return nil, err
		}
		return int32(n), nil

	case TypeLong:
		n, err := parseInt(v, 64)
		if err != nil {
			return nil, err
		}
		return n, nil

	case TypeUint:
		s, ok := scalarText(v)
		if !ok {
			return nil, Skipf("expected a scalar for uint, got %s", describe(v))
		}
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, Skipf("%q is not a uint", s)
		}
		return uint32(n), nil

	case TypeFloat:
		f, err := parseFloat(v, 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil

	case TypeDouble:
		f, err := parseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		return f, nil

	case TypeEnum:
		return coerceEnum(v, ft.Enum)

	case TypeVector2:
		c, err := components(v, 32, "x", "y")
		if err != nil {
			return nil, err
		}
		return Vector2{float32(c[0]), float32(c[1])}, nil

	case TypeVector2Int:
		c, err := intComponents(v, "x", "y")
		if err != nil {
			return nil, err
		}
		return Vector2Int{c[0], c[1]}, nil

	case TypeVector3:
		c, err := components(v, 32, "x", "y", "z")
		if err != nil {
			return nil, err
		}
		return Vector3{float32(c[0]), float32(c[1]), float32(c[2])}, nil

	case TypeVector3Int:
		c, err := intComponents(v, "x", "y", "z")
		if err != nil {
			return nil, err
		}
		return Vector3Int{c[0], c[1], c[2]}, nil

	case TypeVector4:
		c, err := components(v, 32, "x", "y", "z", "w")
		if err != nil {
			return nil, err
		}
		return Vector4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}, nil

	case TypeQuaternion:
		c, err := components(v, 32, "x", "y", "z", "w")
		if err != nil {
			return nil, err
		}
		return Quaternion{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}, nil

	case TypeColor:
		c, err := components(v, 32, "r", "g", "b", "a")
		if err != nil {
			return nil, err
		}
		return Color{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}, nil

	case TypeAsset:
		id, err := assetID(v)
		if err != nil {
			return nil, err
		}
		return resolveAsset(ctx, assets, id, ft.AssetKind)

	case TypeAssetArray:
		list, ok := v.(ir.IRArray)
		if !ok {
			return nil, Skipf("expected a list of asset references, got %s", describe(v))
		}
		ids := make([]string, len(list))
		for i, elem := range list {
			id, err := assetID(elem)
			if err != nil {
				return nil, Skipf("element %d: %v", i, err)
			}
			ids[i] = id
		}
		resolved := make([]Asset, 0, len(ids))
		for _, id := range ids {
			a, err := resolveAsset(ctx, assets, id, ft.AssetKind)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, a)
		}
		return resolved, nil

	default:
		return nil, Skipf("unsupported field type %s", ft)
	}
}

func scalarText(v ir.IRValue) (string, bool) {
	switch s := v.(type) {
	case ir.IRString:
		return string(s), true
	case ir.IRNumber:
		return string(s), true
	case ir.IRBool:
		return strconv.FormatBool(bool(s)), true
	}
	return "", false
}

func parseInt(v ir.IRValue, bits int) (int64, error) {
	s, ok := scalarText(v)
	if !ok {
		return 0, Skipf("expected an integer scalar, got %s", describe(v))
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, Skipf("%q is not a %d-bit integer", s, bits)
	}
	return n, nil
}

// parseFloat parses a decimal scalar. Out-of-range, NaN, and infinite results
// clamp to zero.
func parseFloat(v ir.IRValue, bits int) (float64, error) {
	s, ok := scalarText(v)
	if !ok {
		return 0, Skipf("expected a decimal scalar, got %s", describe(v))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, Skipf("%q is not a number", s)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return f, nil
}

func components(v ir.IRValue, bits int, keys ...string) ([]float64, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, Skipf("expected a mapping with %s, got %s", strings.Join(keys, ","), describe(v))
	}
	out := make([]float64, len(keys))
	for i, k := range keys {
		elem, ok := obj[k]
		if !ok {
			return nil, Skipf("missing component %q", k)
		}
		f, err := parseFloat(elem, bits)
		if err != nil {
			return nil, Skipf("component %q: %v", k, err)
		}
		out[i] = f
	}
	return out, nil
}

func intComponents(v ir.IRValue, keys ...string) ([]int32, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, Skipf("expected a mapping with %s, got %s", strings.Join(keys, ","), describe(v))
	}
	out := make([]int32, len(keys))
	for i, k := range keys {
		elem, ok := obj[k]
		if !ok {
			return nil, Skipf("missing component %q", k)
		}
		n, err := parseInt(elem, 32)
		if err != nil {
			return nil, Skipf("component %q: %v", k, err)
		}
		out[i] = int32(n)
	}
	return out, nil
}

func coerceEnum(v ir.IRValue, enum *EnumType) (any, error) {
	if enum == nil {
		return nil, Skipf("enum field has no declared type")
	}
	s, ok := scalarText(v)
	if !ok {
		return nil, Skipf("expected a scalar for enum %s, got %s", enum.Name, describe(v))
	}
	s = strings.TrimSpace(s)

	switch enum.Backing {
	case EnumBackingInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, Skipf("enum %s does not match %q", enum.Name, s)
		}
		name := enum.nameOf(n)
		if len(enum.Values) > 0 && name == "" {
			return nil, Skipf("%d is not a value of enum %s", n, enum.Name)
		}
		return EnumValue{Type: enum.Name, Name: name, Value: n}, nil

	case EnumBackingString:
		n, ok := enum.Values[s]
		if !ok {
			return nil, Skipf("%q is not a member of enum %s", s, enum.Name)
		}
		return EnumValue{Type: enum.Name, Name: s, Value: n}, nil

	default:
		return nil, Skipf("unsupported enum backing %q for %s", enum.Backing, enum.Name)
	}
}

// assetID extracts the guid of an asset reference mapping.
func assetID(v ir.IRValue) (string, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return "", Skipf("expected an asset reference mapping, got %s", describe(v))
	}
	guid, ok := obj["guid"].(ir.IRString)
	if !ok || guid == "" {
		return "", Skipf("asset reference has no guid")
	}
	return string(guid), nil
}

func resolveAsset(ctx context.Context, assets AssetResolver, id, kind string) (Asset, error) {
	if assets == nil {
		return Asset{}, fmt.Errorf("resolve %s %s: no asset resolver configured: %w", kind, id, ErrAssetNotFound)
	}
	a, err := assets.Resolve(ctx, id, kind)
	if err != nil {
		return Asset{}, fmt.Errorf("resolve %s %s: %w", kind, id, err)
	}
	return a, nil
}

func describe(v ir.IRValue) string {
	switch v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString, ir.IRNumber, ir.IRBool:
		return "scalar"
	case ir.IRRef:
		return "reference"
	case ir.IRArray:
		return "list"
	case ir.IRObject:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}
