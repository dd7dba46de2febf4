package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/zipper"
)

// metricNames maps assertion metric names to catalog counters.
var metricNames = map[string]func(*graph.Metrics) prometheus.Counter{
	"recomputes":       func(m *graph.Metrics) prometheus.Counter { return m.Recomputes },
	"writes":           func(m *graph.Metrics) prometheus.Counter { return m.Writes },
	"short_circuits":   func(m *graph.Metrics) prometheus.Counter { return m.ShortCircuits },
	"live_computes":    func(m *graph.Metrics) prometheus.Counter { return m.LiveComputes },
	"cycle_rejections": func(m *graph.Metrics) prometheus.Counter { return m.CycleRejections },
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Seq, event.Op, event.Args, event.Outcome)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(ctx context.Context, cat *graph.Catalog, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, cat, result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx context.Context, cat *graph.Catalog, result *Result, a Assertion) error {
	switch a.Type {
	case AssertItems:
		return assertItems(ctx, cat, a)
	case AssertBreadcrumbs:
		return assertBreadcrumbs(ctx, cat, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertCacheConsistent:
		return assertCacheConsistent(ctx, cat)
	case AssertAcyclic:
		return assertAcyclic(ctx, cat)
	case AssertMetric:
		return assertMetric(cat, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertItems compares a node's item list, read from the cache or live.
func assertItems(ctx context.Context, cat *graph.Catalog, a Assertion) error {
	got, err := cat.ItemIDs(ctx, a.Node, graph.ItemQuery{ForceLive: a.Live})
	if err != nil {
		return err
	}
	if sameItems(a.Items, got, a.Unordered) {
		return nil
	}
	return &AssertionError{
		Type:     AssertItems,
		Expected: fmt.Sprintf("node %s items %v", a.Node, a.Items),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertBreadcrumbs compares rendered paths in order.
func assertBreadcrumbs(ctx context.Context, cat *graph.Catalog, a Assertion) error {
	h := &Harness{catalog: cat}
	got, err := h.breadcrumbPaths(ctx, a.Node, a.Item)
	if err != nil {
		return err
	}
	if sameItems(a.Paths, got, false) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBreadcrumbs,
		Expected: fmt.Sprintf("paths %v", a.Paths),
		Actual:   fmt.Sprintf("%v", got),
	}
}

// assertTraceCount counts flow steps with the given op and, if set, outcome.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op != a.Op {
			continue
		}
		if a.Outcome != "" && event.Outcome != a.Outcome {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d steps of %s (outcome %q)", a.Count, a.Op, a.Outcome),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

// assertCacheConsistent checks that the cached set of every live node
// equals a fresh live computation. Order may differ.
func assertCacheConsistent(ctx context.Context, cat *graph.Catalog) error {
	nodes, err := cat.Nodes(ctx, model.NodeFilter{})
	if err != nil {
		return err
	}
	var stale []string
	for _, n := range nodes {
		cached, err := cat.ItemIDs(ctx, n.ID, graph.ItemQuery{})
		if err != nil {
			return err
		}
		live, err := cat.ItemIDs(ctx, n.ID, graph.ItemQuery{ForceLive: true})
		if err != nil {
			return err
		}
		if !zipper.SameSet(cached, live) || len(cached) != len(live) {
			stale = append(stale, fmt.Sprintf("%s cached=%v live=%v", n.ID, cached, live))
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertCacheConsistent,
		Expected: "cached item sets equal live item sets",
		Actual:   strings.Join(stale, "; "),
	}
}

// assertAcyclic checks that no live node is its own ancestor.
func assertAcyclic(ctx context.Context, cat *graph.Catalog) error {
	nodes, err := cat.Nodes(ctx, model.NodeFilter{})
	if err != nil {
		return err
	}
	for _, n := range nodes {
		ancestors, err := cat.Ancestors(ctx, n.ID)
		if err != nil {
			return err
		}
		if _, ok := ancestors[n.ID]; ok {
			return &AssertionError{
				Type:     AssertAcyclic,
				Expected: "no node is its own ancestor",
				Actual:   fmt.Sprintf("node %s lies on a cycle", n.ID),
			}
		}
	}
	return nil
}

func assertMetric(cat *graph.Catalog, a Assertion) error {
	counter, ok := metricNames[a.Metric]
	if !ok {
		return fmt.Errorf("unknown metric %q", a.Metric)
	}
	got := promtest.ToFloat64(counter(cat.Metrics()))
	if got == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertMetric,
		Expected: fmt.Sprintf("%s = %g", a.Metric, a.Value),
		Actual:   fmt.Sprintf("%g", got),
	}
}

// sameItems compares two id lists, in order unless unordered is set.
func sameItems(want, got []string, unordered bool) bool {
	if len(want) != len(got) {
		return false
	}
	if !unordered {
		return slices.Equal(want, got)
	}
	return zipper.SameSet(want, got)
}
