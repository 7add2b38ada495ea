package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/scene"
	"github.com/ryohey/warp/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Scene *scene.Scene
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions and returns their failures.
// Every assertion runs; a failure does not stop the rest.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertNodeCount, AssertFacetCount, AssertField, AssertAbsent:
			if actx == nil || actx.Scene == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a scene", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertNodeCount:
				err = assertNodeCount(actx.Scene, assertion)
			case AssertFacetCount:
				err = assertFacetCount(actx.Scene, assertion)
			case AssertField:
				err = assertField(actx.Scene, assertion)
			case AssertAbsent:
				err = assertAbsent(actx.Scene, assertion)
			}
		case AssertPassCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: pass_count requires database context", i)
			} else {
				err = assertPassCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertNodeCount(sc *scene.Scene, a Assertion) error {
	nodes, _ := sc.Counts()
	if nodes != a.Count {
		return &AssertionError{
			Type:     AssertNodeCount,
			Expected: fmt.Sprintf("%d live nodes", a.Count),
			Actual:   fmt.Sprintf("%d live nodes", nodes),
		}
	}
	return nil
}

func assertFacetCount(sc *scene.Scene, a Assertion) error {
	_, facets := sc.Counts()
	if facets != a.Count {
		return &AssertionError{
			Type:     AssertFacetCount,
			Expected: fmt.Sprintf("%d live facets", a.Count),
			Actual:   fmt.Sprintf("%d live facets", facets),
		}
	}
	return nil
}

// target finds the node named a.Node, or its first facet of kind a.Facet.
func target(sc *scene.Scene, a Assertion) (host.Handle, bool) {
	node, ok := sc.FindByName(a.Node)
	if !ok || a.Facet == "" {
		return node, ok
	}
	for _, fh := range sc.Facets(node) {
		if kind, _ := sc.Kind(fh); kind == a.Facet {
			return fh, true
		}
	}
	return host.Handle{}, false
}

func describeTarget(a Assertion) string {
	if a.Facet == "" {
		return fmt.Sprintf("node %q", a.Node)
	}
	return fmt.Sprintf("%s on node %q", a.Facet, a.Node)
}

// assertField checks a live field against its expected rendering. Strings
// match either quoted or bare.
func assertField(sc *scene.Scene, a Assertion) error {
	h, ok := target(sc, a)
	if !ok {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s to be live", describeTarget(a)),
			Actual:   "not found",
		}
	}

	v, ok := sc.Field(h, a.Field)
	if !ok {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s.%s = %s", describeTarget(a), a.Field, a.Equals),
			Actual:   "field not set",
		}
	}

	got := scene.FormatValue(v)
	if s, isString := v.(string); got == a.Equals || (isString && s == a.Equals) {
		return nil
	}
	return &AssertionError{
		Type:     AssertField,
		Expected: fmt.Sprintf("%s.%s = %s", describeTarget(a), a.Field, a.Equals),
		Actual:   fmt.Sprintf("%s.%s = %s", describeTarget(a), a.Field, got),
	}
}

func assertAbsent(sc *scene.Scene, a Assertion) error {
	if _, ok := target(sc, a); ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no live %s", describeTarget(a)),
			Actual:   "found",
		}
	}
	return nil
}

// assertPassCount counts logged passes with parameterized SQL. Status and
// kind are optional filters.
func assertPassCount(ctx context.Context, st *store.Store, a Assertion) error {
	query := "SELECT COUNT(*) FROM passes WHERE 1 = 1"
	var args []any
	if a.Status != "" {
		query += " AND status = ?"
		args = append(args, a.Status)
	}
	if a.Kind != "" {
		query += " AND kind = ?"
		args = append(args, a.Kind)
	}

	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertPassCount,
			Expected: "query pass log",
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("scan pass count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read pass count: %w", err)
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertPassCount,
			Expected: fmt.Sprintf("%d passes%s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d passes", count),
		}
	}
	return nil
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Status != "" {
		parts = append(parts, "status="+a.Status)
	}
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if len(parts) == 0 {
		return ""
	}
	return " with " + strings.Join(parts, " AND ")
}
