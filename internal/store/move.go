package store

import (
	"context"

	"github.com/roach88/onemodel/internal/model"
)

// MoveRelationToLocalEntity re-homes a local relation onto newContainerID,
// keeping its type, target and dates. The relation gets a new id, which is
// returned.
func (s *Store) MoveRelationToLocalEntity(ctx context.Context, sc Scope, relID, newContainerID int64, sortingIndex *int64) (int64, error) {
	const op = "move relation to local entity"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()

	rel, err := getRelationToLocalEntity(ctx, o.runner, relID)
	if err != nil {
		return 0, err
	}
	if err := s.deleteAttribute(ctx, o.runner, op, model.RelationToLocalEntityForm, relID); err != nil {
		return 0, err
	}
	rel.ID = 0
	rel.EntityID = newContainerID
	newID, err := s.insertRelationToLocalEntity(ctx, o.runner, rel, sortingIndex)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return newID, nil
}

// MoveRelationToGroup re-homes a group relation onto newContainerID and
// returns its new id.
func (s *Store) MoveRelationToGroup(ctx context.Context, sc Scope, relID, newContainerID int64, sortingIndex *int64) (int64, error) {
	const op = "move relation to group"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()

	rel, err := getRelationToGroup(ctx, o.runner, relID)
	if err != nil {
		return 0, err
	}
	if err := s.deleteAttribute(ctx, o.runner, op, model.RelationToGroupForm, relID); err != nil {
		return 0, err
	}
	rel.ID = 0
	rel.EntityID = newContainerID
	newID, err := s.insertRelationToGroup(ctx, o.runner, rel, sortingIndex)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return newID, nil
}

// MoveEntityFromGroupToGroup moves a membership between groups. The
// destination group's class homogeneity is checked.
func (s *Store) MoveEntityFromGroupToGroup(ctx context.Context, sc Scope, fromGroupID, toGroupID, entityID int64, sortingIndex *int64) error {
	const op = "move entity from group to group"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	if err := s.addEntityToGroup(ctx, o.runner, op, toGroupID, entityID, sortingIndex); err != nil {
		return err
	}
	if err := removeEntityFromGroup(ctx, o.runner, op, fromGroupID, entityID); err != nil {
		return err
	}
	return o.finish()
}

// MoveEntityFromEntityToGroup turns the target of a local relation into a
// member of groupID and drops the relation.
func (s *Store) MoveEntityFromEntityToGroup(ctx context.Context, sc Scope, relID, groupID int64, sortingIndex *int64) error {
	const op = "move entity from entity to group"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	rel, err := getRelationToLocalEntity(ctx, o.runner, relID)
	if err != nil {
		return err
	}
	if err := s.addEntityToGroup(ctx, o.runner, op, groupID, rel.EntityID2, sortingIndex); err != nil {
		return err
	}
	if err := s.deleteAttribute(ctx, o.runner, op, model.RelationToLocalEntityForm, relID); err != nil {
		return err
	}
	return o.finish()
}

// MoveEntityFromGroupToEntity takes entityID out of groupID and relates it
// from toEntityID with the "has" relation type. It returns the relation id.
func (s *Store) MoveEntityFromGroupToEntity(ctx context.Context, sc Scope, groupID, toEntityID, entityID int64, sortingIndex *int64) (int64, error) {
	const op = "move entity from group to entity"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, err
	}
	defer o.discard()

	relID, err := s.insertRelationToLocalEntity(ctx, o.runner, model.RelationToLocalEntity{
		RelTypeID: s.base.HasRelTypeID,
		EntityID:  toEntityID,
		EntityID2: entityID,
	}, sortingIndex)
	if err != nil {
		return 0, err
	}
	if err := removeEntityFromGroup(ctx, o.runner, op, groupID, entityID); err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return relID, nil
}
