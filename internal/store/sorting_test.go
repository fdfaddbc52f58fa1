package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/model"
)

func TestMidpoint(t *testing.T) {
	tests := []struct {
		lo, hi  int64
		want    int64
		between bool
	}{
		{0, 10, 5, true},
		{-10, 10, 0, true},
		{model.MinID, model.MaxID, -1, true},
		{model.MaxID - 2, model.MaxID, model.MaxID - 1, true},
		{5, 6, 5, false},
		{7, 7, 7, false},
		{-3, -1, -2, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.lo, tt.hi), func(t *testing.T) {
			got, ok := midpoint(tt.lo, tt.hi)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.between, ok)
		})
	}
}

func TestAllocate_DefaultIndicesAreDistinctAndOwned(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")

	ids := []int64{mustText(t, s, e, "one"), mustText(t, s, e, "two"), mustText(t, s, e, "three")}
	indices := make([]int64, len(ids))
	for i, id := range ids {
		idx, err := s.AttributeSortingIndex(ctx, model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: id})
		require.NoError(t, err)
		indices[i] = idx
	}

	assert.Equal(t, model.FirstSortingIndex(), indices[0])
	assert.Equal(t, model.LaterSortingIndex(), indices[1])
	assert.Equal(t, model.MaxID-1, indices[2], "third default collides and probes down from MaxID-1")
	assert.Len(t, map[int64]bool{indices[0]: true, indices[1]: true, indices[2]: true}, 3)

	for i, idx := range indices {
		used, err := s.AttributeSortingIndexInUse(ctx, e, idx)
		require.NoError(t, err)
		assert.True(t, used, "index %d of attribute %d", idx, i)

		// Every other index in the neighborhood is free.
		used, err = s.AttributeSortingIndexInUse(ctx, e, idx-1)
		require.NoError(t, err)
		assert.False(t, used)
	}
}

func TestAllocate_RequestedIndex(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")

	id, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: e, AttrTypeID: e, Text: "x"}, int64Ptr(42))
	require.NoError(t, err)
	idx, err := s.AttributeSortingIndex(ctx, model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: id})
	require.NoError(t, err)
	assert.Equal(t, int64(42), idx)

	// A taken request probes down from the requested index.
	id2, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: e, AttrTypeID: e, Text: "y"}, int64Ptr(42))
	require.NoError(t, err)
	idx, err = s.AttributeSortingIndex(ctx, model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: id2})
	require.NoError(t, err)
	assert.Equal(t, int64(41), idx)
}

func TestAllocate_SortingSpansForms(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")

	_, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: e, AttrTypeID: e, Text: "t"}, int64Ptr(7))
	require.NoError(t, err)
	b, err := s.CreateBooleanAttribute(ctx, Standalone(), model.BooleanAttribute{EntityID: e, AttrTypeID: e, Value: true}, int64Ptr(7))
	require.NoError(t, err)

	idx, err := s.AttributeSortingIndex(ctx, model.SortingKey{EntityID: e, FormID: model.BooleanForm, AttributeID: b})
	require.NoError(t, err)
	assert.Equal(t, int64(6), idx)
}

func TestAllocate_StickToTop(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")
	require.NoError(t, s.UpdateEntityNewEntriesStickToTop(ctx, Standalone(), e, true))

	first := mustText(t, s, e, "first")
	second := mustText(t, s, e, "second")

	attrs, _, err := s.SortedAttributes(ctx, e, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, attrs, 2)
	assert.Equal(t, second, attrs[0].Attribute.Key().AttributeID)
	assert.Equal(t, first, attrs[1].Attribute.Key().AttributeID)
}

func TestAllocate_StickToTopRenumbersWhenTopIsFull(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	g := mustGroup(t, s, "pinned", true)
	require.NoError(t, s.UpdateGroup(ctx, Standalone(), model.Group{ID: g, Name: "pinned", AllowMixedClasses: true, NewEntriesStickToTop: true}))
	a := mustEntity(t, s, "a")
	b := mustEntity(t, s, "b")
	c := mustEntity(t, s, "c")

	// Nothing fits between MinID and a, so b and c need a renumber to stay on top.
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, a, int64Ptr(model.MinID+1)))
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, b, nil))
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, c, nil))

	entries, err := s.GroupEntries(ctx, g, 0, 0, true)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	got := []int64{entries[0].Entity.ID, entries[1].Entity.ID, entries[2].Entity.ID}
	assert.Equal(t, []int64{c, b, a}, got)
}

func TestFindUnused_ExhaustedAtMinID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")
	_, err := s.CreateTextAttribute(ctx, Standalone(), model.TextAttribute{EntityID: e, AttrTypeID: e, Text: "x"}, int64Ptr(model.MinID))
	require.NoError(t, err)

	_, err = s.FindUnusedAttributeSortingIndex(ctx, e, int64Ptr(model.MinID))
	require.Error(t, err)
	assert.True(t, IsAllocationExhausted(err), "got %v", err)
	assert.False(t, IsNotFound(err))
}

func TestFindUnused_ExhaustedAfterProbeBound(t *testing.T) {
	if testing.Short() {
		t.Skip("fills a probe window of sorting rows")
	}
	ctx := context.Background()
	s := createTestStore(t)
	g := mustGroup(t, s, "crowded", true)

	// Occupy the whole probe window below MaxID-1 directly.
	tx, err := s.db.Begin()
	require.NoError(t, err)
	for i := int64(0); i < model.MaxSortingProbe; i++ {
		e, err := s.insertEntity(ctx, runner{q: tx, dialect: s.dialect}, "seed", fmt.Sprintf("m%d", i), nil, nil)
		require.NoError(t, err)
		_, err = tx.Exec("INSERT INTO EntitiesInAGroup (group_id, entity_id, sorting_index) VALUES (?, ?, ?)", g, e, model.MaxID-1-i)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	_, err = s.FindUnusedGroupSortingIndex(ctx, g, nil)
	assert.True(t, IsAllocationExhausted(err), "got %v", err)

	free, err := s.FindUnusedGroupSortingIndex(ctx, g, int64Ptr(0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), free)
}

func attributeOrder(t *testing.T, s *Store, entityID int64) ([]int64, []int64) {
	t.Helper()
	attrs, _, err := s.SortedAttributes(context.Background(), entityID, 0, 0, false)
	require.NoError(t, err)
	ids := make([]int64, len(attrs))
	indices := make([]int64, len(attrs))
	for i, a := range attrs {
		ids[i] = a.Attribute.Key().AttributeID
		indices[i] = a.SortingIndex
	}
	return ids, indices
}

func TestRenumber_PreservesOrderAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")

	// Crowd the indices together near the top.
	for i := 0; i < 6; i++ {
		_, err := s.CreateTextAttribute(ctx, Standalone(),
			model.TextAttribute{EntityID: e, AttrTypeID: e, Text: fmt.Sprintf("t%d", i)}, int64Ptr(model.MaxID-int64(6-i)))
		require.NoError(t, err)
	}
	orderBefore, _ := attributeOrder(t, s, e)

	require.NoError(t, s.RenumberAttributeSorting(ctx, Standalone(), e))

	orderAfter, indices := attributeOrder(t, s, e)
	assert.Equal(t, orderBefore, orderAfter)

	increment := model.MaxID / 8 * 2
	for i, idx := range indices {
		assert.Equal(t, model.MinID+int64(i+1)*increment, idx)
	}
	assert.Len(t, uniqueInts(indices), len(indices))
}

func uniqueInts(xs []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

func TestRenumber_Group(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	g := mustGroup(t, s, "g", true)
	var members []int64
	for i := 0; i < 4; i++ {
		e := mustEntity(t, s, fmt.Sprintf("m%d", i))
		require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, e, int64Ptr(int64(100+i))))
		members = append(members, e)
	}

	require.NoError(t, s.RenumberGroupSorting(ctx, Standalone(), g))

	entries, err := s.GroupEntries(ctx, g, 0, 0, true)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, entry := range entries {
		assert.Equal(t, members[i], entry.Entity.ID)
		if i > 0 {
			assert.Greater(t, entry.SortingIndex, entries[i-1].SortingIndex)
		}
	}
}

func TestMoveAttributeAfter(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")
	a := mustText(t, s, e, "a")
	b := mustText(t, s, e, "b")
	c := mustText(t, s, e, "c")
	key := func(id int64) model.SortingKey {
		return model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: id}
	}

	// a, b, c -> a, c, b
	ka := key(a)
	require.NoError(t, s.MoveAttributeAfter(ctx, Standalone(), key(c), &ka))
	order, _ := attributeOrder(t, s, e)
	assert.Equal(t, []int64{a, c, b}, order)

	// -> b, a, c
	require.NoError(t, s.MoveAttributeAfter(ctx, Standalone(), key(b), nil))
	order, _ = attributeOrder(t, s, e)
	assert.Equal(t, []int64{b, a, c}, order)

	err := s.MoveAttributeAfter(ctx, Standalone(), key(b), func() *model.SortingKey { k := key(b); return &k }())
	assert.True(t, IsInvalidInput(err), "got %v", err)
}

func TestMoveGroupEntryAfter_RenumbersWhenGapIsGone(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	g := mustGroup(t, s, "tight", true)
	a := mustEntity(t, s, "a")
	b := mustEntity(t, s, "b")
	c := mustEntity(t, s, "c")
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, a, int64Ptr(10)))
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, b, int64Ptr(11)))
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, c, int64Ptr(12)))

	// No integer lies between 10 and 11, so c can only land there after a renumber.
	require.NoError(t, s.MoveGroupEntryAfter(ctx, Standalone(), g, c, &a))

	entries, err := s.GroupEntries(ctx, g, 0, 0, true)
	require.NoError(t, err)
	got := []int64{entries[0].Entity.ID, entries[1].Entity.ID, entries[2].Entity.ID}
	assert.Equal(t, []int64{a, c, b}, got)
}

func TestNearestSortingIndex(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	g := mustGroup(t, s, "g", true)
	for i, idx := range []int64{-50, 0, 50} {
		e := mustEntity(t, s, fmt.Sprintf("m%d", i))
		require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), g, e, int64Ptr(idx)))
	}

	next, err := s.NearestGroupSortingIndex(ctx, g, 0, true)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, int64(50), *next)

	prev, err := s.NearestGroupSortingIndex(ctx, g, 0, false)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(-50), *prev)

	none, err := s.NearestGroupSortingIndex(ctx, g, 50, true)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateSortingIndex(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := mustEntity(t, s, "holder")
	a := mustText(t, s, e, "a")
	b := mustText(t, s, e, "b")
	key := model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: a}

	require.NoError(t, s.UpdateAttributeSortingIndex(ctx, Standalone(), key, 5))
	idx, err := s.AttributeSortingIndex(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), idx)

	// Taking b's index violates uniqueness.
	bIdx, err := s.AttributeSortingIndex(ctx, model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: b})
	require.NoError(t, err)
	err = s.UpdateAttributeSortingIndex(ctx, Standalone(), key, bIdx)
	assert.True(t, IsIntegrity(err), "got %v", err)

	err = s.UpdateAttributeSortingIndex(ctx, Standalone(), model.SortingKey{EntityID: e, FormID: model.TextForm, AttributeID: 999}, 1)
	assert.True(t, IsNotFound(err), "got %v", err)
}
