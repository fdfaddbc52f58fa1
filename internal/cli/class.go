package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

type classResult struct {
	Action string            `json:"action"`
	Class  model.EntityClass `json:"class"`
}

func (r classResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s class %d\t%s\t(template entity %d)\n", r.Action, r.Class.ID, r.Class.Name, r.Class.TemplateEntityID)
}

type classList []model.EntityClass

func (l classList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No classes.")
		return
	}
	for _, c := range l {
		fmt.Fprintf(w, "%d\t%s\t(template entity %d)\n", c.ID, c.Name, c.TemplateEntityID)
	}
}

// NewClassCommand creates the class command group.
func NewClassCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage entity classes and their template entities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a class and its template entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				dup, err := s.store.IsDuplicateClassName(ctx, args[0], nil)
				if err != nil {
					return err
				}
				if dup {
					return &store.Error{
						Code:    store.CodeDuplicateName,
						Op:      "class add",
						Message: fmt.Sprintf("class %q already exists", args[0]),
					}
				}
				id, _, err := s.store.CreateClassAndTemplateEntity(ctx, store.Standalone(), args[0])
				if err != nil {
					return err
				}
				c, err := s.store.GetClass(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(classResult{Action: "Created", Class: c})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List classes by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				classes, err := s.store.ListClasses(ctx, 0, 0)
				if err != nil {
					return err
				}
				return s.out.Success(classList(classes))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <class>",
		Short: "Delete a class and its template entity; members lose their class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveClass(ctx, args[0])
				if err != nil {
					return err
				}
				if err := s.store.DeleteClassAndTemplateEntity(ctx, store.Standalone(), id); err != nil {
					return err
				}
				return s.out.Success(idResult{Action: "Deleted", Kind: "class", ID: id})
			})
		},
	})

	return cmd
}

type relTypeResult struct {
	Action       string             `json:"action"`
	RelationType model.RelationType `json:"relation_type"`
}

func (r relTypeResult) renderText(w io.Writer) {
	rt := r.RelationType
	fmt.Fprintf(w, "%s relation type %d\t%s / %s\t(%s)\n", r.Action, rt.ID, rt.Name, rt.NameInReverseDirection, rt.Directionality)
}

type relTypeList []model.RelationType

func (l relTypeList) renderText(w io.Writer) {
	for _, rt := range l {
		fmt.Fprintf(w, "%d\t%s / %s\t(%s)\n", rt.ID, rt.Name, rt.NameInReverseDirection, rt.Directionality)
	}
}

// NewRelTypeCommand creates the reltype command group.
func NewRelTypeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reltype",
		Short: "Manage relation types",
	}

	var dir string
	add := &cobra.Command{
		Use:   "add <name> <reverse-name>",
		Short: "Create a relation type",
		Long: `Create a relation type with its name in the reverse direction.

Examples:
  om reltype add contains "is contained in"
  om reltype add "is married to" "is married to" --dir BI`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := model.Directionality(strings.ToUpper(dir))
			if !model.ValidDirectionalities[d] {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid directionality %q: must be UNI, BI or NON", dir))
			}
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				id, err := s.store.CreateRelationType(ctx, store.Standalone(), args[0], args[1], d)
				if err != nil {
					return err
				}
				rt, err := s.store.GetRelationType(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(relTypeResult{Action: "Created", RelationType: rt})
			})
		},
	}
	add.Flags().StringVar(&dir, "dir", string(model.Unidirectional), "directionality (UNI|BI|NON)")
	cmd.AddCommand(add)

	var archived bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List relation types by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				rts, err := s.store.ListRelationTypes(ctx, 0, 0, archived || s.cfg.IncludeArchived)
				if err != nil {
					return err
				}
				return s.out.Success(relTypeList(rts))
			})
		},
	}
	list.Flags().BoolVar(&archived, "archived", false, "include archived relation types")
	cmd.AddCommand(list)

	return cmd
}
