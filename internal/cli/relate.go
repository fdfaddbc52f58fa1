package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

type relationResult struct {
	Action   string                      `json:"action"`
	Relation model.RelationToLocalEntity `json:"relation"`
}

func (r relationResult) renderText(w io.Writer) {
	rel := r.Relation
	fmt.Fprintf(w, "%s relation %d: %d -[%d]-> %d\n", r.Action, rel.ID, rel.EntityID, rel.RelTypeID, rel.EntityID2)
}

// NewRelateCommand creates the relate command.
func NewRelateCommand(rootOpts *RootOptions) *cobra.Command {
	var move string
	cmd := &cobra.Command{
		Use:   "relate <from> <reltype> <to>",
		Short: "Relate two entities",
		Long: `Add a typed relation from one entity to another. Entities and the relation
type can be given by id or name.

With --move, the existing relation from <from> to <to> is moved so that
the entity given to --move holds it instead.

Examples:
  om relate "Grocery list" has Milk
  om relate Alice knows Bob
  om relate "Old list" has Milk --move "New list"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				from, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				relType, err := s.resolveRelType(ctx, args[1])
				if err != nil {
					return err
				}
				to, err := s.resolveEntity(ctx, args[2])
				if err != nil {
					return err
				}

				if move != "" {
					return s.moveRelation(ctx, relType, from, to, move)
				}

				id, err := s.store.CreateRelationToLocalEntity(ctx, store.Standalone(), model.RelationToLocalEntity{
					RelTypeID: relType,
					EntityID:  from,
					EntityID2: to,
				}, nil)
				if err != nil {
					return err
				}
				rel, err := s.store.GetRelationToLocalEntity(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(relationResult{Action: "Created", Relation: rel})
			})
		},
	}
	cmd.Flags().StringVar(&move, "move", "", "move the existing relation to this entity")
	return cmd
}

func (s *session) moveRelation(ctx context.Context, relType, from, to int64, newContainer string) error {
	rel, err := s.store.FindRelationToLocalEntity(ctx, relType, from, to)
	if err != nil {
		return err
	}
	target, err := s.resolveEntity(ctx, newContainer)
	if err != nil {
		return err
	}
	id, err := s.store.MoveRelationToLocalEntity(ctx, store.Standalone(), rel.ID, target, nil)
	if err != nil {
		return err
	}
	moved, err := s.store.GetRelationToLocalEntity(ctx, id)
	if err != nil {
		return err
	}
	return s.out.Success(relationResult{Action: "Moved", Relation: moved})
}

type textResult struct {
	Action    string              `json:"action"`
	Attribute model.TextAttribute `json:"attribute"`
}

func (r textResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s text attribute %d on entity %d: %q\n", r.Action, r.Attribute.ID, r.Attribute.EntityID, r.Attribute.Text)
}

type attributeList struct {
	EntityID   int64                   `json:"entity_id"`
	Total      int64                   `json:"total"`
	Attributes []model.SortedAttribute `json:"attributes"`
}

func (l attributeList) renderText(w io.Writer) {
	fmt.Fprintf(w, "%d attribute(s) on entity %d\n", l.Total, l.EntityID)
	for _, sa := range l.Attributes {
		a := sa.Attribute
		fmt.Fprintf(w, "  %d\t%s\t%s\n", a.Key().AttributeID, a.Form(), describeAttribute(a))
	}
}

func describeAttribute(a model.Attribute) string {
	switch a := a.(type) {
	case model.TextAttribute:
		return fmt.Sprintf("%q", a.Text)
	case model.QuantityAttribute:
		return fmt.Sprintf("%g (unit %d)", a.Number, a.UnitID)
	case model.DateAttribute:
		return a.Date.Format("2006-01-02")
	case model.BooleanAttribute:
		return fmt.Sprint(a.Value)
	case model.FileAttribute:
		return fmt.Sprintf("%q %d bytes", a.Description, a.Size)
	case model.RelationToLocalEntity:
		return fmt.Sprintf("-[%d]-> entity %d", a.RelTypeID, a.EntityID2)
	case model.RelationToGroup:
		return fmt.Sprintf("-[%d]-> group %d", a.RelTypeID, a.GroupID)
	case model.RelationToRemoteEntity:
		return fmt.Sprintf("-[%d]-> %s entity %d", a.RelTypeID, a.RemoteInstanceID, a.EntityID2)
	}
	return ""
}

// NewTextCommand creates the text command group.
func NewTextCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Add and list text attributes",
	}

	var attrType string
	add := &cobra.Command{
		Use:   "add <entity> <text>",
		Short: "Add a text attribute to an entity",
		Long: `Add a text attribute. Its attribute type defaults to the entity itself.

Examples:
  om text add Milk "2 litres, semi-skimmed"
  om text add Alice "met at the conference" --type note`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				owner, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				typeID := owner
				if attrType != "" {
					if typeID, err = s.resolveEntity(ctx, attrType); err != nil {
						return err
					}
				}
				id, err := s.store.CreateTextAttribute(ctx, store.Standalone(), model.TextAttribute{
					EntityID:   owner,
					AttrTypeID: typeID,
					Text:       args[1],
				}, nil)
				if err != nil {
					return err
				}
				a, err := s.store.GetTextAttribute(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(textResult{Action: "Created", Attribute: a})
			})
		},
	}
	add.Flags().StringVar(&attrType, "type", "", "attribute type entity id or name")
	cmd.AddCommand(add)

	var public bool
	list := &cobra.Command{
		Use:   "list <entity>",
		Short: "List all attributes of an entity in sorting order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveEntity(ctx, args[0])
				if err != nil {
					return err
				}
				attrs, total, err := s.store.SortedAttributes(ctx, id, 0, 0, public)
				if err != nil {
					return err
				}
				return s.out.Success(attributeList{EntityID: id, Total: total, Attributes: attrs})
			})
		},
	}
	list.Flags().BoolVar(&public, "public", false, "only relations to public entities")
	cmd.AddCommand(list)

	return cmd
}
