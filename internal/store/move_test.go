package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/onemodel/internal/model"
)

func TestMoveRelationToLocalEntity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	oldHome := mustEntity(t, s, "old home")
	newHome := mustEntity(t, s, "new home")
	target := mustEntity(t, s, "target")
	on := time.Date(2021, time.March, 3, 0, 0, 0, 0, time.UTC)
	relID, err := s.CreateRelationToLocalEntity(ctx, Standalone(), model.RelationToLocalEntity{
		RelTypeID: s.Base().HasRelTypeID, EntityID: oldHome, EntityID2: target, ValidOnDate: &on, ObservationDate: observed,
	}, nil)
	require.NoError(t, err)

	newID, err := s.MoveRelationToLocalEntity(ctx, Standalone(), relID, newHome, int64Ptr(10))
	require.NoError(t, err)

	ok, err := s.RelationToLocalEntityKeyExists(ctx, relID)
	require.NoError(t, err)
	assert.False(t, ok, "old relation is gone")
	assert.Equal(t, int64(0), sortingRows(t, s, model.SortingKey{EntityID: oldHome, FormID: model.RelationToLocalEntityForm, AttributeID: relID}))

	moved, err := s.GetRelationToLocalEntity(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, newHome, moved.EntityID)
	assert.Equal(t, target, moved.EntityID2)
	require.NotNil(t, moved.ValidOnDate)
	assert.True(t, on.Equal(*moved.ValidOnDate))
	assert.True(t, observed.Equal(moved.ObservationDate))

	idx, err := s.AttributeSortingIndex(ctx, moved.Key())
	require.NoError(t, err)
	assert.Equal(t, int64(10), idx)
}

func TestMoveRelationToGroup(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	oldHome := mustEntity(t, s, "old home")
	newHome := mustEntity(t, s, "new home")
	g, relID, err := s.CreateGroupAndRelationToGroup(ctx, Standalone(), oldHome, s.Base().HasRelTypeID, "g", true, nil, observed, nil)
	require.NoError(t, err)

	newID, err := s.MoveRelationToGroup(ctx, Standalone(), relID, newHome, nil)
	require.NoError(t, err)

	rels, err := s.ContainingRelationsToGroup(ctx, g)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, newID, rels[0].ID)
	assert.Equal(t, newHome, rels[0].EntityID)

	_, err = s.MoveRelationToGroup(ctx, Standalone(), relID, newHome, nil)
	assert.True(t, IsNotFound(err))
}

func TestMoveEntityFromGroupToGroup(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	book := mustClass(t, s, "book")
	film := mustClass(t, s, "film")
	from := mustGroup(t, s, "from", true)
	films := mustGroup(t, s, "films", false)
	books := mustGroup(t, s, "books", false)
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), films, mustClassedEntity(t, s, "Alien", film), nil))
	dune := mustClassedEntity(t, s, "Dune", book)
	require.NoError(t, s.AddEntityToGroup(ctx, Standalone(), from, dune, nil))

	err := s.MoveEntityFromGroupToGroup(ctx, Standalone(), from, films, dune, nil)
	assert.True(t, IsMixedClasses(err), "got %v", err)
	in, err := s.IsEntityInGroup(ctx, from, dune)
	require.NoError(t, err)
	assert.True(t, in, "failed move leaves the source membership")

	require.NoError(t, s.MoveEntityFromGroupToGroup(ctx, Standalone(), from, books, dune, nil))
	in, err = s.IsEntityInGroup(ctx, from, dune)
	require.NoError(t, err)
	assert.False(t, in)
	in, err = s.IsEntityInGroup(ctx, books, dune)
	require.NoError(t, err)
	assert.True(t, in)
}

func TestMoveEntityBetweenEntityAndGroup(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	parent := mustEntity(t, s, "parent")
	child := mustEntity(t, s, "child")
	g := mustGroup(t, s, "g", true)
	relID := mustRelate(t, s, parent, child)

	require.NoError(t, s.MoveEntityFromEntityToGroup(ctx, Standalone(), relID, g, nil))
	in, err := s.IsEntityInGroup(ctx, g, child)
	require.NoError(t, err)
	assert.True(t, in)
	ok, err := s.RelationToLocalEntityKeyExists(ctx, relID)
	require.NoError(t, err)
	assert.False(t, ok)

	newRel, err := s.MoveEntityFromGroupToEntity(ctx, Standalone(), g, parent, child, nil)
	require.NoError(t, err)
	in, err = s.IsEntityInGroup(ctx, g, child)
	require.NoError(t, err)
	assert.False(t, in)
	rel, err := s.GetRelationToLocalEntity(ctx, newRel)
	require.NoError(t, err)
	assert.Equal(t, parent, rel.EntityID)
	assert.Equal(t, child, rel.EntityID2)
	assert.Equal(t, s.Base().HasRelTypeID, rel.RelTypeID)

	_, err = s.MoveEntityFromGroupToEntity(ctx, Standalone(), g, parent, mustEntity(t, s, "stranger"), nil)
	assert.True(t, IsNotFound(err), "not a member, got %v", err)
}
