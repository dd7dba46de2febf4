package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/seed"
	"github.com/roach88/taxon/internal/store"
	"github.com/roach88/taxon/internal/testutil"
)

// Operation names accepted in scenario steps.
const (
	OpCreateNode         = "create_node"
	OpUpdateNode         = "update_node"
	OpSetBase            = "set_base"
	OpDeleteNode         = "delete_node"
	OpCreateEdge         = "create_edge"
	OpDeleteEdge         = "delete_edge"
	OpReorderEdges       = "reorder_edges"
	OpCreateAssignment   = "create_assignment"
	OpDeleteAssignment   = "delete_assignment"
	OpReorderAssignments = "reorder_assignments"
	OpItems              = "items"
	OpBreadcrumbs        = "breadcrumbs"
	OpInvalidate         = "invalidate"
	OpRebuild            = "rebuild"
)

// Harness executes scenario steps against a catalog.
type Harness struct {
	store   *store.Store
	catalog *graph.Catalog
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// sequential ids and a stepping clock for reproducible traces.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Apply the seed file, if any
// 3. Execute setup steps (any error aborts the run)
// 4. Execute flow steps and check expect clauses
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store: st,
		catalog: graph.New(st, graph.Options{
			Logger:     logger,
			IDs:        model.NewSequenceGenerator("id"),
			Clock:      testutil.NewStepClock(),
			Registerer: prometheus.NewRegistry(),
		}),
		logger: logger,
	}

	ctx := context.Background()

	if scenario.Seed != "" {
		f, err := seed.LoadFile(scenario.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed: %w", err)
		}
		if _, err := seed.Apply(ctx, h.catalog, f); err != nil {
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}

	for i, step := range scenario.Setup {
		if _, err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to execute setup step %d (%s): %w", i, step.Op, err)
		}
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, h.catalog, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Graph errors are outcomes, not failures: they are recorded in the trace
// by code and compared with the expect clause. Any other error aborts.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		value, err := h.execute(ctx, step)

		outcome := OutcomeOK
		if err != nil {
			var ge *graph.GraphError
			if !errors.As(err, &ge) {
				return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
			}
			outcome = string(ge.Code)
			value = nil
		}
		result.AddTrace(step.Op, step.Args.toMap(), outcome, value)

		for _, msg := range checkExpect(step, outcome, value) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}

		h.logger.Info("flow step executed",
			"step", i,
			"op", step.Op,
			"outcome", outcome,
		)
	}
	return nil
}

// checkExpect compares a step outcome with its expect clause. A step
// without an expect clause must succeed.
func checkExpect(step Step, outcome string, value any) []string {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if outcome != want {
		return []string{fmt.Sprintf("expected outcome %s, got %s", want, outcome)}
	}
	if step.Expect == nil || outcome != OutcomeOK {
		return nil
	}

	var errs []string
	got, _ := value.([]string)
	switch {
	case step.Expect.Items != nil:
		if !sameItems(step.Expect.Items, got, step.Expect.Unordered) {
			errs = append(errs, fmt.Sprintf("expected items %v, got %v", step.Expect.Items, got))
		}
	case step.Expect.Paths != nil:
		if !sameItems(step.Expect.Paths, got, false) {
			errs = append(errs, fmt.Sprintf("expected paths %v, got %v", step.Expect.Paths, got))
		}
	case step.Expect.Written != nil:
		if !sameItems(step.Expect.Written, got, false) {
			errs = append(errs, fmt.Sprintf("expected written %v, got %v", step.Expect.Written, got))
		}
	}
	return errs
}

// execute runs one step and returns its traceable result.
func (h *Harness) execute(ctx context.Context, step Step) (any, error) {
	a := step.Args
	cat := h.catalog

	switch step.Op {
	case OpCreateNode:
		active := true
		if a.Active != nil {
			active = *a.Active
		}
		_, err := cat.CreateNode(ctx, graph.NodeInput{
			ID:       a.ID,
			IsActive: active,
			IsRoot:   a.Root,
			Sequence: a.Sequence,
			Tags:     a.Tags,
		})
		return nil, err

	case OpUpdateNode:
		_, err := cat.UpdateNode(ctx, a.Node, graph.NodePatch{IsActive: a.Active, Tags: a.Tags})
		return nil, err

	case OpSetBase:
		return nil, cat.SetBase(ctx, a.Node)

	case OpDeleteNode:
		return nil, cat.DeleteNode(ctx, a.Node)

	case OpCreateEdge:
		e, err := cat.CreateEdge(ctx, graph.EdgeInput{
			ParentID: a.Parent,
			ChildID:  a.Child,
			SortKey:  a.SortKey,
			Tags:     a.Tags,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": e.ID, "sort_key": e.SortKey}, nil

	case OpDeleteEdge:
		e, err := cat.EdgeBetween(ctx, a.Parent, a.Child)
		if err != nil {
			return nil, err
		}
		return nil, cat.DeleteEdge(ctx, e.ID)

	case OpReorderEdges:
		_, err := cat.ReorderChildren(ctx, a.Parent, a.Order)
		return nil, err

	case OpCreateAssignment:
		asg, err := cat.CreateAssignment(ctx, graph.AssignmentInput{
			NodeID:  a.Node,
			ItemID:  a.Item,
			SortKey: a.SortKey,
			Tags:    a.Tags,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": asg.ID, "sort_key": asg.SortKey}, nil

	case OpDeleteAssignment:
		asg, err := cat.AssignmentOf(ctx, a.Node, a.Item)
		if err != nil {
			return nil, err
		}
		return nil, cat.DeleteAssignment(ctx, asg.ID)

	case OpReorderAssignments:
		_, err := cat.ReorderItems(ctx, a.Node, a.Order)
		return nil, err

	case OpItems:
		return cat.ItemIDs(ctx, a.Node, graph.ItemQuery{ForceLive: a.Live, IgnoreChildren: a.Own})

	case OpBreadcrumbs:
		return h.breadcrumbPaths(ctx, a.Node, a.Item)

	case OpInvalidate:
		inv, err := cat.Invalidate(ctx, a.Node, graph.InvalidateOptions{SkipUpstreamTraversal: a.Skip})
		if err != nil {
			return nil, err
		}
		return written(inv), nil

	case OpRebuild:
		inv, err := cat.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
		return written(inv), nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// breadcrumbPaths renders breadcrumbs as "R>A>B" strings. A parentless
// node renders as its own id.
func (h *Harness) breadcrumbPaths(ctx context.Context, nodeID, itemID string) ([]string, error) {
	var (
		crumbs []model.Breadcrumb
		err    error
	)
	if itemID != "" {
		crumbs, err = h.catalog.ItemBreadcrumbs(ctx, itemID)
	} else {
		crumbs, err = h.catalog.NodeBreadcrumbs(ctx, nodeID)
	}
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(crumbs))
	for _, b := range crumbs {
		ids := b.NodeIDs()
		if len(ids) == 0 {
			ids = []string{nodeID}
		}
		paths = append(paths, strings.Join(ids, ">"))
	}
	return paths, nil
}

func written(inv graph.Invalidation) []string {
	if inv.Written == nil {
		return []string{}
	}
	return inv.Written
}

// toMap renders the non-zero arguments for the trace.
func (a Args) toMap() map[string]any {
	m := make(map[string]any)
	put := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	put("id", a.ID)
	put("node", a.Node)
	put("parent", a.Parent)
	put("child", a.Child)
	put("item", a.Item)
	if a.Active != nil {
		m["active"] = *a.Active
	}
	if a.Root {
		m["root"] = true
	}
	if a.Sequence != 0 {
		m["sequence"] = a.Sequence
	}
	if a.SortKey != nil {
		m["sort_key"] = *a.SortKey
	}
	if len(a.Tags) > 0 {
		m["tags"] = a.Tags
	}
	if len(a.Order) > 0 {
		m["order"] = a.Order
	}
	if a.Live {
		m["live"] = true
	}
	if a.Own {
		m["own"] = true
	}
	if a.Skip {
		m["skip_upstream"] = true
	}
	return m
}
