package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

// CreateRelationToLocalEntity adds a typed edge from rel.EntityID to
// rel.EntityID2 and returns its id.
func (s *Store) CreateRelationToLocalEntity(ctx context.Context, sc Scope, rel model.RelationToLocalEntity, sortingIndex *int64) (int64, error) {
	o, err := s.begin(ctx, sc, "create relation to local entity")
	if err != nil {
		return 0, err
	}
	defer o.discard()
	id, err := s.insertRelationToLocalEntity(ctx, o.runner, rel, sortingIndex)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertRelationToLocalEntity(ctx context.Context, r runner, rel model.RelationToLocalEntity, sortingIndex *int64) (int64, error) {
	observed := s.observed(rel.ObservationDate)
	return s.insertAttribute(ctx, r, "create relation to local entity", model.RelationToLocalEntityForm, rel.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO RelationToEntity
				(id, rel_type_id, entity_id, entity_id_2, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, rel.RelTypeID, rel.EntityID, rel.EntityID2, nullMillis(rel.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateRelationToLocalEntity rewrites the dates of a relation. Its
// endpoints and type identify it and are not changed.
func (s *Store) UpdateRelationToLocalEntity(ctx context.Context, sc Scope, rel model.RelationToLocalEntity) error {
	return s.updateOne(ctx, sc, "update relation to local entity", "relation to local entity", rel.ID, `
		UPDATE RelationToEntity SET valid_on_date = ?, observation_date = ?
		WHERE id = ? AND rel_type_id = ? AND entity_id = ? AND entity_id_2 = ?
	`, nullMillis(rel.ValidOnDate), millis(s.observed(rel.ObservationDate)), rel.ID, rel.RelTypeID, rel.EntityID, rel.EntityID2)
}

// DeleteRelationToLocalEntity removes a relation and its sorting row.
func (s *Store) DeleteRelationToLocalEntity(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete relation to local entity", model.RelationToLocalEntityForm, id)
}

// GetRelationToLocalEntity loads a relation by id.
func (s *Store) GetRelationToLocalEntity(ctx context.Context, id int64) (model.RelationToLocalEntity, error) {
	return getRelationToLocalEntity(ctx, s.reader(), id)
}

// FindRelationToLocalEntity loads the relation of relTypeID from entityID to entityID2.
func (s *Store) FindRelationToLocalEntity(ctx context.Context, relTypeID, entityID, entityID2 int64) (model.RelationToLocalEntity, error) {
	var id int64
	err := s.reader().queryRow(ctx, `
		SELECT id FROM RelationToEntity WHERE rel_type_id = ? AND entity_id = ? AND entity_id_2 = ?
	`, relTypeID, entityID, entityID2).Scan(&id)
	if err != nil {
		return model.RelationToLocalEntity{}, scanOne(err, "find relation to local entity", "relation to local entity", relTypeID, entityID, entityID2)
	}
	return s.GetRelationToLocalEntity(ctx, id)
}

// RelationToLocalEntityKeyExists reports whether the relation exists.
func (s *Store) RelationToLocalEntityKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.RelationToLocalEntityForm, id)
}

func getRelationToLocalEntity(ctx context.Context, r runner, id int64) (model.RelationToLocalEntity, error) {
	var (
		rel     model.RelationToLocalEntity
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, rel_type_id, entity_id, entity_id_2, valid_on_date, observation_date
		FROM RelationToEntity WHERE id = ?
	`, id).Scan(&rel.ID, &rel.RelTypeID, &rel.EntityID, &rel.EntityID2, &validOn, &obs)
	if err != nil {
		return model.RelationToLocalEntity{}, scanOne(err, "get relation to local entity", "relation to local entity", id)
	}
	rel.ValidOnDate = timePtr(validOn)
	rel.ObservationDate = fromMillis(obs)
	return rel, nil
}

// CreateRelationToRemoteEntity adds a typed edge to an entity held by a
// registered OmInstance and returns its id.
func (s *Store) CreateRelationToRemoteEntity(ctx context.Context, sc Scope, rel model.RelationToRemoteEntity, sortingIndex *int64) (int64, error) {
	observed := s.observed(rel.ObservationDate)
	return s.createAttribute(ctx, sc, "create relation to remote entity", model.RelationToRemoteEntityForm, rel.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO RelationToRemoteEntity
				(id, rel_type_id, entity_id, remote_instance_id, entity_id_2, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, id, rel.RelTypeID, rel.EntityID, rel.RemoteInstanceID, rel.EntityID2, nullMillis(rel.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateRelationToRemoteEntity rewrites the dates of a remote relation.
func (s *Store) UpdateRelationToRemoteEntity(ctx context.Context, sc Scope, rel model.RelationToRemoteEntity) error {
	return s.updateOne(ctx, sc, "update relation to remote entity", "relation to remote entity", rel.ID, `
		UPDATE RelationToRemoteEntity SET valid_on_date = ?, observation_date = ?
		WHERE id = ? AND rel_type_id = ? AND entity_id = ? AND remote_instance_id = ? AND entity_id_2 = ?
	`, nullMillis(rel.ValidOnDate), millis(s.observed(rel.ObservationDate)), rel.ID, rel.RelTypeID, rel.EntityID, rel.RemoteInstanceID, rel.EntityID2)
}

// DeleteRelationToRemoteEntity removes a remote relation and its sorting row.
func (s *Store) DeleteRelationToRemoteEntity(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete relation to remote entity", model.RelationToRemoteEntityForm, id)
}

// GetRelationToRemoteEntity loads a remote relation by id.
func (s *Store) GetRelationToRemoteEntity(ctx context.Context, id int64) (model.RelationToRemoteEntity, error) {
	return getRelationToRemoteEntity(ctx, s.reader(), id)
}

// RelationToRemoteEntityKeyExists reports whether the remote relation exists.
func (s *Store) RelationToRemoteEntityKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.RelationToRemoteEntityForm, id)
}

func getRelationToRemoteEntity(ctx context.Context, r runner, id int64) (model.RelationToRemoteEntity, error) {
	var (
		rel     model.RelationToRemoteEntity
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, rel_type_id, entity_id, remote_instance_id, entity_id_2, valid_on_date, observation_date
		FROM RelationToRemoteEntity WHERE id = ?
	`, id).Scan(&rel.ID, &rel.RelTypeID, &rel.EntityID, &rel.RemoteInstanceID, &rel.EntityID2, &validOn, &obs)
	if err != nil {
		return model.RelationToRemoteEntity{}, scanOne(err, "get relation to remote entity", "relation to remote entity", id)
	}
	rel.ValidOnDate = timePtr(validOn)
	rel.ObservationDate = fromMillis(obs)
	return rel, nil
}

// CreateRelationToGroup adds a typed edge from rel.EntityID to rel.GroupID
// and returns its id.
func (s *Store) CreateRelationToGroup(ctx context.Context, sc Scope, rel model.RelationToGroup, sortingIndex *int64) (int64, error) {
	o, err := s.begin(ctx, sc, "create relation to group")
	if err != nil {
		return 0, err
	}
	defer o.discard()
	id, err := s.insertRelationToGroup(ctx, o.runner, rel, sortingIndex)
	if err != nil {
		return 0, err
	}
	if err := o.finish(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertRelationToGroup(ctx context.Context, r runner, rel model.RelationToGroup, sortingIndex *int64) (int64, error) {
	observed := s.observed(rel.ObservationDate)
	return s.insertAttribute(ctx, r, "create relation to group", model.RelationToGroupForm, rel.EntityID, sortingIndex,
		func(ctx context.Context, r runner, id int64) error {
			_, err := r.exec(ctx, `
				INSERT INTO RelationToGroup
				(id, entity_id, rel_type_id, group_id, valid_on_date, observation_date)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, rel.EntityID, rel.RelTypeID, rel.GroupID, nullMillis(rel.ValidOnDate), millis(observed))
			return err
		})
}

// UpdateRelationToGroup rewrites the type and dates of a group relation.
func (s *Store) UpdateRelationToGroup(ctx context.Context, sc Scope, rel model.RelationToGroup) error {
	return s.updateOne(ctx, sc, "update relation to group", "relation to group", rel.ID, `
		UPDATE RelationToGroup SET rel_type_id = ?, valid_on_date = ?, observation_date = ?
		WHERE id = ? AND entity_id = ? AND group_id = ?
	`, rel.RelTypeID, nullMillis(rel.ValidOnDate), millis(s.observed(rel.ObservationDate)), rel.ID, rel.EntityID, rel.GroupID)
}

// DeleteRelationToGroup removes a group relation and its sorting row. The
// group itself stays.
func (s *Store) DeleteRelationToGroup(ctx context.Context, sc Scope, id int64) error {
	return s.deleteAttributeScoped(ctx, sc, "delete relation to group", model.RelationToGroupForm, id)
}

// GetRelationToGroup loads a group relation by id.
func (s *Store) GetRelationToGroup(ctx context.Context, id int64) (model.RelationToGroup, error) {
	return getRelationToGroup(ctx, s.reader(), id)
}

// RelationToGroupKeyExists reports whether the group relation exists.
func (s *Store) RelationToGroupKeyExists(ctx context.Context, id int64) (bool, error) {
	return s.AttributeKeyExists(ctx, model.RelationToGroupForm, id)
}

func getRelationToGroup(ctx context.Context, r runner, id int64) (model.RelationToGroup, error) {
	var (
		rel     model.RelationToGroup
		validOn sql.NullInt64
		obs     int64
	)
	err := r.queryRow(ctx, `
		SELECT id, entity_id, rel_type_id, group_id, valid_on_date, observation_date
		FROM RelationToGroup WHERE id = ?
	`, id).Scan(&rel.ID, &rel.EntityID, &rel.RelTypeID, &rel.GroupID, &validOn, &obs)
	if err != nil {
		return model.RelationToGroup{}, scanOne(err, "get relation to group", "relation to group", id)
	}
	rel.ValidOnDate = timePtr(validOn)
	rel.ObservationDate = fromMillis(obs)
	return rel, nil
}

// relationsFrom lists the local relations whose source is entityID.
func relationsFrom(ctx context.Context, r runner, entityID int64) ([]model.RelationToLocalEntity, error) {
	rows, err := r.query(ctx, `
		SELECT id, rel_type_id, entity_id, entity_id_2, valid_on_date, observation_date
		FROM RelationToEntity WHERE entity_id = ?
		ORDER BY id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("relations from %d: %w", entityID, err)
	}
	defer rows.Close()

	rels := make([]model.RelationToLocalEntity, 0)
	for rows.Next() {
		var (
			rel     model.RelationToLocalEntity
			validOn sql.NullInt64
			obs     int64
		)
		if err := rows.Scan(&rel.ID, &rel.RelTypeID, &rel.EntityID, &rel.EntityID2, &validOn, &obs); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rel.ValidOnDate = timePtr(validOn)
		rel.ObservationDate = fromMillis(obs)
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}
	return rels, nil
}
