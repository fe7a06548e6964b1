package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localboard/internal/geom"
)

func TestHugeObjectStaysOutOfGrid(t *testing.T) {
	idx := NewSpaceIndex(64)
	idx.Insert("small", geom.Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10})
	idx.Insert("huge", geom.Bounds{MinX: 0, MinY: 0, MaxX: 1e6, MaxY: 1e6})
	assert.Len(t, idx.cells, 1, "only the small object occupies grid cells")
	assert.Contains(t, idx.oversized, "huge")

	assert.ElementsMatch(t, []string{"small", "huge"}, idx.Query(geom.Bounds{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}))
	assert.Equal(t, []string{"huge"}, idx.Query(geom.Bounds{MinX: 5e5, MinY: 5e5, MaxX: 5e5 + 1, MaxY: 5e5 + 1}))
	assert.Empty(t, idx.Query(geom.Bounds{MinX: -50, MinY: -50, MaxX: -40, MaxY: -40}))

	// shrinking moves it back into the grid
	idx.Insert("huge", geom.Bounds{MinX: 100, MinY: 100, MaxX: 120, MaxY: 120})
	assert.NotContains(t, idx.oversized, "huge")
	assert.Equal(t, []string{"huge"}, idx.Query(geom.Bounds{MinX: 110, MinY: 110, MaxX: 111, MaxY: 111}))

	idx.Insert("huge", geom.Bounds{MinX: 0, MinY: 0, MaxX: 1e6, MaxY: 1e6})
	idx.Remove("huge")
	assert.Empty(t, idx.oversized)
	assert.Equal(t, []string{"small"}, idx.Query(geom.Bounds{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}))
}

func TestInfiniteBoundsDoNotWalkTheGrid(t *testing.T) {
	idx := NewSpaceIndex(0)
	idx.Insert("inf", geom.Bounds{MinX: 0, MinY: 0, MaxX: math.Inf(1), MaxY: 10})
	assert.Empty(t, idx.cells)
	assert.Equal(t, []string{"inf"}, idx.Query(geom.Bounds{MinX: 1e9, MinY: 0, MaxX: 1e9 + 1, MaxY: 1}))
}

func TestStoreAddsHugeRectangle(t *testing.T) {
	s := NewStore()
	big := Object{ID: "big", Type: TypeRectangle, X: -5e5, Y: -5e5, Width: 1e6, Height: 1e6}
	require.NoError(t, s.Apply(act("a1", AddPayload{Object: big})))

	got := s.Query(geom.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "big", got[0].ID)

	require.NoError(t, s.Apply(act("a2", DeletePayload{Object: big})))
	assert.Empty(t, s.Query(geom.Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}))
}
