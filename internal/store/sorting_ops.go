package store

import (
	"context"

	"github.com/roach88/onemodel/internal/model"
)

// AttributeSortingIndexInUse reports whether any attribute of entityID holds index.
func (s *Store) AttributeSortingIndexInUse(ctx context.Context, entityID, index int64) (bool, error) {
	return attributeScope{entityID}.inUse(ctx, s.reader(), index)
}

// GroupSortingIndexInUse reports whether any member of groupID holds index.
func (s *Store) GroupSortingIndexInUse(ctx context.Context, groupID, index int64) (bool, error) {
	return groupScope{groupID}.inUse(ctx, s.reader(), index)
}

// FindUnusedAttributeSortingIndex probes downward from startingWith, or from
// MaxID-1 when nil.
func (s *Store) FindUnusedAttributeSortingIndex(ctx context.Context, entityID int64, startingWith *int64) (int64, error) {
	start := model.MaxID - 1
	if startingWith != nil {
		start = *startingWith
	}
	return s.probeUnused(ctx, s.reader(), attributeScope{entityID}, start)
}

// FindUnusedGroupSortingIndex probes downward from startingWith, or from
// MaxID-1 when nil.
func (s *Store) FindUnusedGroupSortingIndex(ctx context.Context, groupID int64, startingWith *int64) (int64, error) {
	start := model.MaxID - 1
	if startingWith != nil {
		start = *startingWith
	}
	return s.probeUnused(ctx, s.reader(), groupScope{groupID}, start)
}

// AttributeSortingIndex returns the sorting index of one attribute.
func (s *Store) AttributeSortingIndex(ctx context.Context, key model.SortingKey) (int64, error) {
	const op = "get attribute sorting index"
	var idx int64
	err := s.reader().queryRow(ctx, `
		SELECT sorting_index FROM AttributeSorting
		WHERE entity_id = ? AND attribute_form_id = ? AND attribute_id = ?
	`, key.EntityID, key.FormID, key.AttributeID).Scan(&idx)
	if err != nil {
		return 0, scanOne(err, op, "attribute sorting row", key.EntityID, key.AttributeID)
	}
	return idx, nil
}

// AttributeSortingKeyExists reports whether the sorting row for key exists.
func (s *Store) AttributeSortingKeyExists(ctx context.Context, key model.SortingKey) (bool, error) {
	_, err := s.AttributeSortingIndex(ctx, key)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// GroupSortingIndex returns the sorting index of entityID within groupID.
func (s *Store) GroupSortingIndex(ctx context.Context, groupID, entityID int64) (int64, error) {
	const op = "get group sorting index"
	var idx int64
	err := s.reader().queryRow(ctx, `
		SELECT sorting_index FROM EntitiesInAGroup WHERE group_id = ? AND entity_id = ?
	`, groupID, entityID).Scan(&idx)
	if err != nil {
		return 0, scanOne(err, op, "group entry", groupID, entityID)
	}
	return idx, nil
}

// UpdateAttributeSortingIndex sets the index of one attribute. The index
// must be free within the entity.
func (s *Store) UpdateAttributeSortingIndex(ctx context.Context, sc Scope, key model.SortingKey, index int64) error {
	o, err := s.begin(ctx, sc, "update attribute sorting index")
	if err != nil {
		return err
	}
	defer o.discard()
	m := sortMember{form: key.FormID, id: key.AttributeID}
	if err := (attributeScope{key.EntityID}).setIndex(ctx, o.runner, m, index); err != nil {
		return err
	}
	return o.finish()
}

// UpdateGroupSortingIndex sets the index of entityID within groupID.
func (s *Store) UpdateGroupSortingIndex(ctx context.Context, sc Scope, groupID, entityID, index int64) error {
	o, err := s.begin(ctx, sc, "update group sorting index")
	if err != nil {
		return err
	}
	defer o.discard()
	if err := (groupScope{groupID}).setIndex(ctx, o.runner, sortMember{id: entityID}, index); err != nil {
		return err
	}
	return o.finish()
}

// NearestAttributeSortingIndex returns the closest used index after (forward)
// or before from, or nil when there is none.
func (s *Store) NearestAttributeSortingIndex(ctx context.Context, entityID, from int64, forward bool) (*int64, error) {
	return attributeScope{entityID}.nearest(ctx, s.reader(), from, forward)
}

// NearestGroupSortingIndex is NearestAttributeSortingIndex for group members.
func (s *Store) NearestGroupSortingIndex(ctx context.Context, groupID, from int64, forward bool) (*int64, error) {
	return groupScope{groupID}.nearest(ctx, s.reader(), from, forward)
}

// RenumberAttributeSorting respaces an entity's attributes evenly, keeping order.
func (s *Store) RenumberAttributeSorting(ctx context.Context, sc Scope, entityID int64) error {
	o, err := s.begin(ctx, sc, "renumber attribute sorting")
	if err != nil {
		return err
	}
	defer o.discard()
	if err := s.renumber(ctx, o.runner, attributeScope{entityID}); err != nil {
		return err
	}
	return o.finish()
}

// RenumberGroupSorting respaces a group's members evenly, keeping order.
func (s *Store) RenumberGroupSorting(ctx context.Context, sc Scope, groupID int64) error {
	o, err := s.begin(ctx, sc, "renumber group sorting")
	if err != nil {
		return err
	}
	defer o.discard()
	if err := s.renumber(ctx, o.runner, groupScope{groupID}); err != nil {
		return err
	}
	return o.finish()
}

// MoveAttributeAfter places the attribute key right after the attribute
// after, or first when after is nil.
func (s *Store) MoveAttributeAfter(ctx context.Context, sc Scope, key model.SortingKey, after *model.SortingKey) error {
	o, err := s.begin(ctx, sc, "move attribute")
	if err != nil {
		return err
	}
	defer o.discard()
	var prev *sortMember
	if after != nil {
		if after.EntityID != key.EntityID {
			return newError(CodeInvalidInput, "move attribute", "neighbor belongs to another entity", key.EntityID, after.EntityID)
		}
		prev = &sortMember{form: after.FormID, id: after.AttributeID}
	}
	moving := sortMember{form: key.FormID, id: key.AttributeID}
	if err := s.placeAfter(ctx, o.runner, attributeScope{key.EntityID}, moving, prev); err != nil {
		return err
	}
	return o.finish()
}

// MoveGroupEntryAfter places entityID right after afterEntityID within the
// group, or first when afterEntityID is nil.
func (s *Store) MoveGroupEntryAfter(ctx context.Context, sc Scope, groupID, entityID int64, afterEntityID *int64) error {
	o, err := s.begin(ctx, sc, "move group entry")
	if err != nil {
		return err
	}
	defer o.discard()
	var prev *sortMember
	if afterEntityID != nil {
		prev = &sortMember{id: *afterEntityID}
	}
	if err := s.placeAfter(ctx, o.runner, groupScope{groupID}, sortMember{id: entityID}, prev); err != nil {
		return err
	}
	return o.finish()
}
