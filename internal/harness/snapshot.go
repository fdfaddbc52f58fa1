package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

// Render writes the graph held by st as deterministic text: plain entities
// by id with their attributes in sorting order, then groups with their
// members, relation types and classes. The system and preferences entities
// are left out.
func Render(ctx context.Context, st *store.Store) (string, error) {
	r := &renderer{st: st, names: map[int64]string{}}
	var b strings.Builder
	if err := r.entities(ctx, &b); err != nil {
		return "", err
	}
	if err := r.groups(ctx, &b); err != nil {
		return "", err
	}
	if err := r.relationTypes(ctx, &b); err != nil {
		return "", err
	}
	if err := r.classes(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

type renderer struct {
	st         *store.Store
	names      map[int64]string
	groupNames map[int64]string
	classNames map[int64]string
}

func (r *renderer) entityName(ctx context.Context, id int64) (string, error) {
	if name, ok := r.names[id]; ok {
		return name, nil
	}
	e, err := r.st.GetEntity(ctx, id)
	if err != nil {
		return "", err
	}
	r.names[id] = e.Name
	return e.Name, nil
}

func (r *renderer) className(ctx context.Context, id int64) (string, error) {
	if r.classNames == nil {
		classes, err := r.st.ListClasses(ctx, 0, 0)
		if err != nil {
			return "", err
		}
		r.classNames = make(map[int64]string, len(classes))
		for _, c := range classes {
			r.classNames[c.ID] = c.Name
		}
	}
	return r.classNames[id], nil
}

func (r *renderer) groupName(ctx context.Context, id int64) (string, error) {
	if r.groupNames == nil {
		groups, err := r.st.ListGroups(ctx, 0, 0)
		if err != nil {
			return "", err
		}
		r.groupNames = make(map[int64]string, len(groups))
		for _, g := range groups {
			r.groupNames[g.ID] = g.Name
		}
	}
	return r.groupNames[id], nil
}

func (r *renderer) entities(ctx context.Context, b *strings.Builder) error {
	base := r.st.Base()
	all, err := r.st.ListEntities(ctx, store.EntityQuery{IncludeArchived: true})
	if err != nil {
		return err
	}
	for _, e := range all {
		r.names[e.ID] = e.Name
	}

	b.WriteString("entities:\n")
	n := 0
	for _, e := range all {
		if e.ID == base.SystemEntityID || e.ID == base.PreferencesEntityID {
			continue
		}
		n++
		fmt.Fprintf(b, "  %s", e.Name)
		if e.ClassID != nil {
			name, err := r.className(ctx, *e.ClassID)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, " [class %s]", name)
		}
		if e.Archived {
			b.WriteString(" (archived)")
		}
		b.WriteString("\n")

		attrs, _, err := r.st.SortedAttributes(ctx, e.ID, 0, 0, false)
		if err != nil {
			return err
		}
		for _, sa := range attrs {
			line, err := r.attribute(ctx, sa.Attribute)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "    %s\n", line)
		}
	}
	if n == 0 {
		b.WriteString("  (none)\n")
	}
	return nil
}

func (r *renderer) attribute(ctx context.Context, a model.Attribute) (string, error) {
	switch a := a.(type) {
	case model.TextAttribute:
		return "text " + strconv.Quote(a.Text), nil
	case model.RelationToLocalEntity:
		rel, err := r.entityName(ctx, a.RelTypeID)
		if err != nil {
			return "", err
		}
		to, err := r.entityName(ctx, a.EntityID2)
		if err != nil {
			return "", err
		}
		return rel + " -> " + to, nil
	case model.RelationToGroup:
		rel, err := r.entityName(ctx, a.RelTypeID)
		if err != nil {
			return "", err
		}
		g, err := r.groupName(ctx, a.GroupID)
		if err != nil {
			return "", err
		}
		return rel + " -> group " + g, nil
	case model.RelationToRemoteEntity:
		rel, err := r.entityName(ctx, a.RelTypeID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s -> remote %s/%d", rel, a.RemoteInstanceID, a.EntityID2), nil
	case model.QuantityAttribute:
		unit, err := r.entityName(ctx, a.UnitID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("quantity %s %s", strconv.FormatFloat(a.Number, 'g', -1, 64), unit), nil
	case model.DateAttribute:
		return "date " + a.Date.UTC().Format("2006-01-02"), nil
	case model.BooleanAttribute:
		return "boolean " + strconv.FormatBool(a.Value), nil
	case model.FileAttribute:
		return fmt.Sprintf("file %s (%d bytes, md5 %s)", strconv.Quote(a.Description), a.Size, a.MD5Hash), nil
	}
	return "", fmt.Errorf("render: unknown attribute %T", a)
}

func (r *renderer) groups(ctx context.Context, b *strings.Builder) error {
	groups, err := r.st.ListGroups(ctx, 0, 0)
	if err != nil {
		return err
	}
	b.WriteString("groups:\n")
	if len(groups) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, g := range groups {
		fmt.Fprintf(b, "  %s", g.Name)
		if g.AllowMixedClasses {
			b.WriteString(" (mixed)")
		}
		b.WriteString("\n")
		members, err := r.st.GroupEntries(ctx, g.ID, 0, 0, true)
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Fprintf(b, "    - %s\n", m.Entity.Name)
		}
	}
	return nil
}

func (r *renderer) relationTypes(ctx context.Context, b *strings.Builder) error {
	rts, err := r.st.ListRelationTypes(ctx, 0, 0, true)
	if err != nil {
		return err
	}
	b.WriteString("relation types:\n")
	for _, rt := range rts {
		fmt.Fprintf(b, "  %s / %s (%s)\n", rt.Name, rt.NameInReverseDirection, rt.Directionality)
	}
	return nil
}

func (r *renderer) classes(ctx context.Context, b *strings.Builder) error {
	classes, err := r.st.ListClasses(ctx, 0, 0)
	if err != nil {
		return err
	}
	b.WriteString("classes:\n")
	if len(classes) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, c := range classes {
		tmpl, err := r.entityName(ctx, c.TemplateEntityID)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "  %s (template %s)\n", c.Name, tmpl)
	}
	return nil
}
