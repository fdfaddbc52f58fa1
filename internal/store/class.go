package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/onemodel/internal/model"
)

// TemplateSuffix is appended to a class name to name its template entity.
const TemplateSuffix = "-template"

func scanClass(sc rowScanner) (model.EntityClass, error) {
	var (
		c        model.EntityClass
		defaults sql.NullBool
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.TemplateEntityID, &defaults); err != nil {
		return model.EntityClass{}, err
	}
	c.CreateDefaultAttributes = boolPtr(defaults)
	return c, nil
}

// CreateClassAndTemplateEntity creates a class, its template entity named
// "<name>-template" belonging to the class, and files the template in the
// system class-defining group. It returns the class id and the template id.
func (s *Store) CreateClassAndTemplateEntity(ctx context.Context, sc Scope, name string) (int64, int64, error) {
	const op = "create class"
	name, err := cleanName(op, name)
	if err != nil {
		return 0, 0, err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return 0, 0, err
	}
	defer o.discard()

	classID, err := nextID(ctx, o.runner, seqClass)
	if err != nil {
		return 0, 0, err
	}
	// The class and template rows point at each other; both foreign keys are
	// checked at commit.
	templateID, err := s.insertEntity(ctx, o.runner, op, name+TemplateSuffix, &classID, nil)
	if err != nil {
		return 0, 0, err
	}
	_, err = o.exec(ctx, "INSERT INTO class (id, name, defining_entity_id) VALUES (?, ?, ?)", classID, name, templateID)
	if err != nil {
		return 0, 0, wrap(op, err, classID, templateID)
	}
	if err := s.addEntityToGroup(ctx, o.runner, op, s.base.ClassGroupID, templateID, nil); err != nil {
		return 0, 0, err
	}
	if err := o.finish(); err != nil {
		return 0, 0, err
	}
	return classID, templateID, nil
}

// UpdateClassAndTemplateName renames a class and its template entity together.
func (s *Store) UpdateClassAndTemplateName(ctx context.Context, sc Scope, classID int64, name string) error {
	const op = "rename class"
	name, err := cleanName(op, name)
	if err != nil {
		return err
	}
	templateName, err := cleanName(op, name+TemplateSuffix)
	if err != nil {
		return err
	}
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	c, err := getClass(ctx, o.runner, classID)
	if err != nil {
		return err
	}
	if _, err := o.exec(ctx, "UPDATE class SET name = ? WHERE id = ?", name, classID); err != nil {
		return wrap(op, err, classID)
	}
	res, err := o.exec(ctx, "UPDATE Entity SET name = ? WHERE id = ?", templateName, c.TemplateEntityID)
	if err != nil {
		return wrap(op, err, c.TemplateEntityID)
	}
	if err := expectOneRow(res, op, "template entity", c.TemplateEntityID); err != nil {
		return err
	}
	return o.finish()
}

// UpdateClassCreateDefaultAttributes sets the class's tri-state preference
// for creating its template's attributes on new members. nil means ask.
func (s *Store) UpdateClassCreateDefaultAttributes(ctx context.Context, sc Scope, classID int64, value *bool) error {
	return s.updateOne(ctx, sc, "update class create default attributes", "class", classID,
		"UPDATE class SET create_default_attributes = ? WHERE id = ?", nullBool(value), classID)
}

// GetClass loads a class by id.
func (s *Store) GetClass(ctx context.Context, id int64) (model.EntityClass, error) {
	return getClass(ctx, s.reader(), id)
}

func getClass(ctx context.Context, r runner, id int64) (model.EntityClass, error) {
	c, err := scanClass(r.queryRow(ctx,
		"SELECT id, name, defining_entity_id, create_default_attributes FROM class WHERE id = ?", id))
	if err != nil {
		return model.EntityClass{}, scanOne(err, "get class", "class", id)
	}
	return c, nil
}

// ListClasses returns a page of classes ordered by name, then id.
func (s *Store) ListClasses(ctx context.Context, offset, limit int) ([]model.EntityClass, error) {
	rows, err := s.reader().query(ctx,
		"SELECT id, name, defining_entity_id, create_default_attributes FROM class ORDER BY name ASC, id ASC"+
			s.dialect.page(offset, limit))
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	classes := make([]model.EntityClass, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("list classes: scan: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list classes: iterate: %w", err)
	}
	return classes, nil
}

// ClassCount counts classes.
func (s *Store) ClassCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.reader().queryRow(ctx, "SELECT COUNT(*) FROM class").Scan(&n); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return n, nil
}

// ClassKeyExists reports whether the class exists.
func (s *Store) ClassKeyExists(ctx context.Context, id int64) (bool, error) {
	return rowExists(ctx, s.reader(), "SELECT COUNT(*) FROM class WHERE id = ?", id)
}

// IsDuplicateClassName reports whether another class already uses name.
func (s *Store) IsDuplicateClassName(ctx context.Context, name string, ignoreID *int64) (bool, error) {
	name, err := cleanName("is duplicate class name", name)
	if err != nil {
		return false, err
	}
	query := "SELECT COUNT(*) FROM class WHERE name = ?"
	args := []any{name}
	if ignoreID != nil {
		query += " AND id <> ?"
		args = append(args, *ignoreID)
	}
	return rowExists(ctx, s.reader(), query, args...)
}

// DeleteClassAndTemplateEntity removes a class and its template entity.
// The template leaves the class-defining group, every member of the class
// is detached from it, then the class and template rows are deleted.
func (s *Store) DeleteClassAndTemplateEntity(ctx context.Context, sc Scope, classID int64) error {
	const op = "delete class"
	o, err := s.begin(ctx, sc, op)
	if err != nil {
		return err
	}
	defer o.discard()

	c, err := getClass(ctx, o.runner, classID)
	if err != nil {
		return err
	}
	filed, err := rowExists(ctx, o.runner,
		"SELECT COUNT(*) FROM EntitiesInAGroup WHERE group_id = ? AND entity_id = ?", s.base.ClassGroupID, c.TemplateEntityID)
	if err != nil {
		return err
	}
	if filed {
		if err := removeEntityFromGroup(ctx, o.runner, op, s.base.ClassGroupID, c.TemplateEntityID); err != nil {
			return err
		}
	}
	if _, err := o.exec(ctx, "UPDATE Entity SET class_id = NULL WHERE class_id = ?", classID); err != nil {
		return wrap(op+": detach members", err, classID)
	}
	res, err := o.exec(ctx, "DELETE FROM class WHERE id = ?", classID)
	if err != nil {
		return wrap(op, err, classID)
	}
	if err := expectOneRow(res, op, "class", classID); err != nil {
		return err
	}
	if err := o.deleteEntity(ctx, c.TemplateEntityID); err != nil {
		return err
	}
	return o.finish()
}
