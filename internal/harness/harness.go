package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
	"github.com/roach88/onemodel/internal/testutil"
)

// Harness executes one scenario against its own store.
type Harness struct {
	store  *store.Store
	logger *slog.Logger

	entities map[string]int64 // entity and relation-type aliases
	relTypes map[string]int64
	classes  map[string]int64
	groups   map[string]int64
}

// Options adjusts a run. The zero value discards logs.
type Options struct {
	Logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database with base data
// 2. Execute steps, checking expected error codes
// 3. Evaluate assertions
// 4. Render the final graph snapshot
//
// A step that fails unexpectedly stops the remaining steps; the returned
// error is reserved for infrastructure failures.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialIDGenerator("")

	st, err := store.Open(":memory:", store.Options{
		Logger:        logger,
		Clock:         clock.Now,
		NewInstanceID: ids.Generate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	base := st.Base()
	h := &Harness{
		store:    st,
		logger:   logger,
		entities: map[string]int64{SystemAlias: base.SystemEntityID},
		relTypes: map[string]int64{HasAlias: base.HasRelTypeID},
		classes:  map[string]int64{},
		groups:   map[string]int64{},
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if !h.executeStep(ctx, i, step, result) {
			break
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Harness: h}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	snapshot, err := Render(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to render snapshot: %w", err)
	}
	result.Snapshot = snapshot
	return result, nil
}

// executeStep runs one step and records it. It returns false when the run
// should stop.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) bool {
	id, err := h.apply(ctx, step)
	rec := StepRecord{Index: index, Op: step.Op, Alias: step.As, ID: id}
	if err != nil {
		rec.Code = string(store.CodeOf(err))
	}
	result.Steps = append(result.Steps, rec)

	switch {
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got success", index, step.Op, step.ExpectError))
		return false
	case step.ExpectError != "" && rec.Code != step.ExpectError:
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got %v", index, step.Op, step.ExpectError, err))
		return false
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] (%s): %v", index, step.Op, err))
		return false
	}

	if err == nil && step.As != "" {
		h.bind(step.Op, step.As, id)
	}
	h.logger.Debug("scenario step", "index", index, "op", step.Op, "id", id, "code", rec.Code)
	return true
}

func (h *Harness) bind(op, alias string, id int64) {
	switch op {
	case OpCreateEntity:
		h.entities[alias] = id
	case OpCreateRelType:
		h.relTypes[alias] = id
		h.entities[alias] = id
	case OpCreateClass:
		h.classes[alias] = id
	case OpCreateGroup:
		h.groups[alias] = id
	}
}

// apply performs the store operation behind step. The returned id is that
// of the created object, or zero.
func (h *Harness) apply(ctx context.Context, step Step) (int64, error) {
	st := h.store
	sc := store.Standalone()
	switch step.Op {
	case OpCreateEntity:
		var classID *int64
		if step.Class != "" {
			id := h.classes[step.Class]
			classID = &id
		}
		return st.CreateEntity(ctx, sc, step.Name, classID, nil)

	case OpCreateRelType:
		dir := model.Unidirectional
		if step.Directionality != "" {
			dir = model.Directionality(step.Directionality)
		}
		return st.CreateRelationType(ctx, sc, step.Name, step.Reverse, dir)

	case OpRelate:
		return st.CreateRelationToLocalEntity(ctx, sc, model.RelationToLocalEntity{
			RelTypeID: h.relTypes[step.RelType],
			EntityID:  h.entities[step.From],
			EntityID2: h.entities[step.To],
		}, nil)

	case OpAddText:
		owner := h.entities[step.Entity]
		return st.CreateTextAttribute(ctx, sc, model.TextAttribute{
			EntityID:   owner,
			AttrTypeID: owner,
			Text:       step.Text,
		}, nil)

	case OpCreateGroup:
		if step.From == "" {
			return st.CreateGroup(ctx, sc, step.Name, step.AllowMixed)
		}
		relType := h.relTypes[HasAlias]
		if step.RelType != "" {
			relType = h.relTypes[step.RelType]
		}
		groupID, _, err := st.CreateGroupAndRelationToGroup(ctx, sc,
			h.entities[step.From], relType, step.Name, step.AllowMixed, nil, time.Time{}, nil)
		return groupID, err

	case OpAddToGroup:
		return 0, st.AddEntityToGroup(ctx, sc, h.groups[step.Group], h.entities[step.Entity], nil)

	case OpCreateClass:
		classID, _, err := st.CreateClassAndTemplateEntity(ctx, sc, step.Name)
		return classID, err

	case OpSetClass:
		classID := h.classes[step.Class]
		return 0, st.UpdateEntityClass(ctx, sc, h.entities[step.Entity], &classID)

	case OpArchive:
		return 0, st.ArchiveEntity(ctx, sc, h.entities[step.Entity])

	case OpDeleteEntity:
		return 0, st.DeleteEntity(ctx, sc, h.entities[step.Entity])
	}
	return 0, fmt.Errorf("unknown op %q", step.Op)
}

// aliasNames maps entity ids back to the aliases that name them, for
// rendering and assertion messages. Relation types keep their own names.
func (h *Harness) aliasNames() map[int64]string {
	names := make(map[int64]string, len(h.entities))
	for alias, id := range h.entities {
		if _, isRelType := h.relTypes[alias]; isRelType {
			continue
		}
		names[id] = alias
	}
	return names
}
