package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryohey/warp/internal/host"
)

func TestRuntimeErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			"id and kind",
			newFacetConstructionFailed("502", "Rigidbody"),
			"FACET_CONSTRUCTION_FAILED: host returned no facet instance (id=502, kind=Rigidbody)",
		},
		{
			"wrapped cause",
			newUnknownFacetKind("9", "Foo", host.ErrUnknownFacetKind),
			"UNKNOWN_FACET_KIND: host cannot construct facet kind (id=9, kind=Foo): unknown facet kind",
		},
		{
			"no id",
			newAlreadySpawned(3),
			"ALREADY_SPAWNED: live graph already holds 3 entities",
		},
		{
			"id only",
			&RuntimeError{Code: ErrCodeUnknownFacetKind, Message: "m", StableID: "1"},
			"UNKNOWN_FACET_KIND: m (id=1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRuntimeErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("pass: %w", newAlreadySpawned(1))
	assert.True(t, IsAlreadySpawned(wrapped))
	assert.False(t, IsUnknownFacetKind(wrapped))
	assert.False(t, IsFacetConstructionFailed(errors.New("plain")))

	err := fmt.Errorf("pass: %w", newUnknownFacetKind("1", "X", host.ErrUnknownFacetKind))
	assert.True(t, IsUnknownFacetKind(err))
	assert.ErrorIs(t, err, host.ErrUnknownFacetKind)
}
