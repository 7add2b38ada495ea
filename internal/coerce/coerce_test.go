package coerce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/ir"
)

func vec(pairs ...string) ir.IRObject {
	obj := ir.IRObject{}
	for i := 0; i+1 < len(pairs); i += 2 {
		obj[pairs[i]] = ir.IRString(pairs[i+1])
	}
	return obj
}

func TestCoerceScalars(t *testing.T) {
	tests := []struct {
		name     string
		value    ir.IRValue
		kind     TypeKind
		expected any
	}{
		{"string verbatim", ir.IRString(" Cube "), TypeString, " Cube "},
		{"string from number", ir.IRNumber("12"), TypeString, "12"},
		{"bool one", ir.IRString("1"), TypeBool, true},
		{"bool zero", ir.IRString("0"), TypeBool, false},
		{"bool nonzero", ir.IRString("7"), TypeBool, true},
		{"bool negative", ir.IRString("-1"), TypeBool, true},
		{"bool native", ir.IRBool(true), TypeBool, true},
		{"int", ir.IRString("-42"), TypeInt, int32(-42)},
		{"int from number", ir.IRNumber("8"), TypeInt, int32(8)},
		{"long", ir.IRString("9223372036854775807"), TypeLong, int64(9223372036854775807)},
		{"uint", ir.IRString("4294967295"), TypeUint, uint32(4294967295)},
		{"float", ir.IRString("0.5"), TypeFloat, float32(0.5)},
		{"double", ir.IRString("2.25"), TypeDouble, 2.25},
		{"float exponent", ir.IRString("1e-2"), TypeDouble, 0.01},
		{"float NaN clamps", ir.IRString("NaN"), TypeFloat, float32(0)},
		{"double Infinity clamps", ir.IRString("Infinity"), TypeDouble, 0.0},
		{"float overflow clamps", ir.IRString("1e39"), TypeFloat, float32(0)},
		{"double negative overflow clamps", ir.IRString("-1e400"), TypeDouble, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(context.Background(), tt.value, FieldType{Kind: tt.kind}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCoerceSkips(t *testing.T) {
	tests := []struct {
		name  string
		value ir.IRValue
		ft    FieldType
	}{
		{"bool from word", ir.IRString("yes"), FieldType{Kind: TypeBool}},
		{"int overflow", ir.IRString("2147483648"), FieldType{Kind: TypeInt}},
		{"int from decimal", ir.IRString("1.5"), FieldType{Kind: TypeInt}},
		{"uint negative", ir.IRString("-1"), FieldType{Kind: TypeUint}},
		{"float from word", ir.IRString("abc"), FieldType{Kind: TypeFloat}},
		{"string from mapping", ir.IRObject{}, FieldType{Kind: TypeString}},
		{"int from null", ir.IRNull{}, FieldType{Kind: TypeInt}},
		{"vector from scalar", ir.IRString("1"), FieldType{Kind: TypeVector3}},
		{"vector missing component", vec("x", "1", "y", "2"), FieldType{Kind: TypeVector3}},
		{"vector bad component", vec("x", "1", "y", "b"), FieldType{Kind: TypeVector2}},
		{"vector int from decimal", vec("x", "1.5", "y", "2"), FieldType{Kind: TypeVector2Int}},
		{"color missing alpha", vec("r", "1", "g", "1", "b", "1"), FieldType{Kind: TypeColor}},
		{"enum without type", ir.IRString("1"), FieldType{Kind: TypeEnum}},
		{"asset from null", ir.IRNull{}, FieldType{Kind: TypeAsset, AssetKind: "Mesh"}},
		{"asset without guid", ir.IRObject{"fileID": ir.IRString("10202")}, FieldType{Kind: TypeAsset, AssetKind: "Mesh"}},
		{"asset array from mapping", ir.IRObject{}, FieldType{Kind: TypeAssetArray, AssetKind: "Material"}},
		{"unsupported kind", ir.IRString("1"), FieldType{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(context.Background(), tt.value, tt.ft, nil)
			require.Error(t, err)
			assert.True(t, IsSkip(err), "expected SkipError, got %v", err)
			assert.Nil(t, got)
		})
	}
}

func TestCoerceComposites(t *testing.T) {
	ctx := context.Background()

	got, err := Coerce(ctx, vec("x", "1", "y", "2.5", "z", "-3"), FieldType{Kind: TypeVector3}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vector3{1, 2.5, -3}, got)

	got, err = Coerce(ctx, vec("x", "0", "y", "0.7071068", "z", "0", "w", "0.7071068"), FieldType{Kind: TypeQuaternion}, nil)
	require.NoError(t, err)
	assert.Equal(t, Quaternion{0, 0.7071068, 0, 0.7071068}, got)

	got, err = Coerce(ctx, vec("r", "1", "g", "0.5", "b", "0", "a", "1"), FieldType{Kind: TypeColor}, nil)
	require.NoError(t, err)
	assert.Equal(t, Color{1, 0.5, 0, 1}, got)

	got, err = Coerce(ctx, vec("x", "3", "y", "-4"), FieldType{Kind: TypeVector2Int}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vector2Int{3, -4}, got)

	got, err = Coerce(ctx, vec("x", "1", "y", "2", "z", "3"), FieldType{Kind: TypeVector3Int}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vector3Int{1, 2, 3}, got)

	got, err = Coerce(ctx, vec("x", "1", "y", "2", "z", "3", "w", "4", "extra", "x"), FieldType{Kind: TypeVector4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vector4{1, 2, 3, 4}, got, "extra keys are ignored")

	got, err = Coerce(ctx, vec("x", "NaN", "y", "1"), FieldType{Kind: TypeVector2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Vector2{0, 1}, got, "components clamp like scalars")
}

func TestCoerceEnum(t *testing.T) {
	shadows := &EnumType{
		Name:    "ShadowCastingMode",
		Backing: EnumBackingInt,
		Values:  map[string]int64{"Off": 0, "On": 1, "TwoSided": 2, "ShadowsOnly": 3},
	}
	ctx := context.Background()

	got, err := Coerce(ctx, ir.IRString("2"), FieldType{Kind: TypeEnum, Enum: shadows}, nil)
	require.NoError(t, err)
	assert.Equal(t, EnumValue{Type: "ShadowCastingMode", Name: "TwoSided", Value: 2}, got)

	_, err = Coerce(ctx, ir.IRString("9"), FieldType{Kind: TypeEnum, Enum: shadows}, nil)
	assert.True(t, IsSkip(err), "undeclared value")

	_, err = Coerce(ctx, ir.IRString("On"), FieldType{Kind: TypeEnum, Enum: shadows}, nil)
	assert.True(t, IsSkip(err), "int backing does not accept names")

	open := &EnumType{Name: "Flags", Backing: EnumBackingInt}
	got, err = Coerce(ctx, ir.IRString("64"), FieldType{Kind: TypeEnum, Enum: open}, nil)
	require.NoError(t, err)
	assert.Equal(t, EnumValue{Type: "Flags", Value: 64}, got, "no declared values accepts any integer")

	named := &EnumType{Name: "Mode", Backing: EnumBackingString, Values: map[string]int64{"Fast": 0, "Slow": 1}}
	got, err = Coerce(ctx, ir.IRString("Slow"), FieldType{Kind: TypeEnum, Enum: named}, nil)
	require.NoError(t, err)
	assert.Equal(t, EnumValue{Type: "Mode", Name: "Slow", Value: 1}, got)

	_, err = Coerce(ctx, ir.IRString("Medium"), FieldType{Kind: TypeEnum, Enum: named}, nil)
	assert.True(t, IsSkip(err))

	odd := &EnumType{Name: "Odd", Backing: "byte"}
	_, err = Coerce(ctx, ir.IRString("1"), FieldType{Kind: TypeEnum, Enum: odd}, nil)
	assert.True(t, IsSkip(err), "unsupported backing")
}

type mapResolver map[string]Asset

func (m mapResolver) Resolve(_ context.Context, id, kind string) (Asset, error) {
	a, ok := m[id]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	if a.Kind != kind {
		return Asset{}, ErrUnsupportedAssetKind
	}
	return a, nil
}

func assetRef(guid string) ir.IRObject {
	return ir.IRObject{"fileID": ir.IRString("2100000"), "guid": ir.IRString(guid), "type": ir.IRString("2")}
}

func TestCoerceAsset(t *testing.T) {
	assets := mapResolver{
		"mesh1": {ID: "mesh1", Kind: "Mesh"},
		"mat1":  {ID: "mat1", Kind: "Material"},
		"mat2":  {ID: "mat2", Kind: "Material"},
	}
	ctx := context.Background()

	got, err := Coerce(ctx, assetRef("mesh1"), FieldType{Kind: TypeAsset, AssetKind: "Mesh"}, assets)
	require.NoError(t, err)
	assert.Equal(t, Asset{ID: "mesh1", Kind: "Mesh"}, got)

	got, err = Coerce(ctx, ir.IRArray{assetRef("mat1"), assetRef("mat2")}, FieldType{Kind: TypeAssetArray, AssetKind: "Material"}, assets)
	require.NoError(t, err)
	assert.Equal(t, []Asset{{ID: "mat1", Kind: "Material"}, {ID: "mat2", Kind: "Material"}}, got)

	got, err = Coerce(ctx, ir.IRArray{}, FieldType{Kind: TypeAssetArray, AssetKind: "Material"}, assets)
	require.NoError(t, err)
	assert.Equal(t, []Asset{}, got)
}

func TestCoerceAssetFailuresPropagate(t *testing.T) {
	assets := mapResolver{"mat1": {ID: "mat1", Kind: "Material"}, "mesh1": {ID: "mesh1", Kind: "Mesh"}}
	ctx := context.Background()

	got, err := Coerce(ctx, assetRef("missing"), FieldType{Kind: TypeAsset, AssetKind: "Mesh"}, assets)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.False(t, IsSkip(err))
	assert.Nil(t, got)

	got, err = Coerce(ctx, assetRef("mesh1"), FieldType{Kind: TypeAsset, AssetKind: "Texture2D"}, assets)
	assert.ErrorIs(t, err, ErrUnsupportedAssetKind)
	assert.Nil(t, got)

	// One bad element fails the whole array.
	got, err = Coerce(ctx, ir.IRArray{assetRef("mat1"), assetRef("missing")}, FieldType{Kind: TypeAssetArray, AssetKind: "Material"}, assets)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.Nil(t, got)

	_, err = Coerce(ctx, assetRef("mat1"), FieldType{Kind: TypeAsset, AssetKind: "Material"}, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound, "no resolver configured")
}

func TestCoerceAssetContextPassedThrough(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var seen any
	resolver := AssetResolverFunc(func(ctx context.Context, id, kind string) (Asset, error) {
		seen = ctx.Value(key{})
		return Asset{}, errors.New("boom")
	})

	_, err := Coerce(ctx, assetRef("x"), FieldType{Kind: TypeAsset, AssetKind: "Mesh"}, resolver)
	require.Error(t, err)
	assert.Equal(t, "marker", seen)
	assert.Contains(t, err.Error(), "resolve Mesh x")
}
