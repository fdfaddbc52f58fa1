package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

type omiList []model.OmInstance

func (l omiList) renderText(w io.Writer) {
	for _, i := range l {
		writeOmInstance(w, i)
	}
}

func writeOmInstance(w io.Writer, i model.OmInstance) {
	fmt.Fprintf(w, "%s\t%s", i.ID, i.Address)
	if i.Local {
		fmt.Fprint(w, "\t(local)")
	}
	if i.EntityID != nil {
		fmt.Fprintf(w, "\tentity %d", *i.EntityID)
	}
	fmt.Fprintln(w)
}

type omiResult struct {
	Action   string           `json:"action"`
	Instance model.OmInstance `json:"instance"`
}

func (r omiResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s instance ", r.Action)
	writeOmInstance(w, r.Instance)
}

// NewOmiCommand creates the omi command group.
func NewOmiCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "omi",
		Short: "Register other stores that relations can point into",
	}

	var entity string
	add := &cobra.Command{
		Use:   "add <address>",
		Short: "Register a remote instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				var entityID *int64
				if entity != "" {
					id, err := s.resolveEntity(ctx, entity)
					if err != nil {
						return err
					}
					entityID = &id
				}
				id, err := s.store.CreateOmInstance(ctx, store.Standalone(), args[0], entityID)
				if err != nil {
					return err
				}
				inst, err := s.store.GetOmInstance(ctx, id)
				if err != nil {
					return err
				}
				return s.out.Success(omiResult{Action: "Registered", Instance: inst})
			})
		},
	}
	add.Flags().StringVar(&entity, "entity", "", "entity describing the instance")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List instances, local first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				instances, err := s.store.ListOmInstances(ctx)
				if err != nil {
					return err
				}
				return s.out.Success(omiList(instances))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Unregister a remote instance and drop relations into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(ctx context.Context, s *session) error {
				if err := s.store.DeleteOmInstance(ctx, store.Standalone(), args[0]); err != nil {
					return err
				}
				return s.out.Success(map[string]string{"action": "Deleted", "id": args[0]})
			})
		},
	})

	return cmd
}
