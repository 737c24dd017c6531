// Package report formats analysis results as text, JSON and call graph
// drawings.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-graphviz"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/ir"
)

var (
	methodColor = color.New(color.FgCyan, color.Bold)
	arrowColor  = color.New(color.FgHiBlack)
	warnColor   = color.New(color.FgYellow)
)

// Edge is a context-insensitive call graph edge.
type Edge struct {
	Site   *ir.Invoke
	Callee *ir.Method
	Kind   ir.CallKind
}

// CallEdges projects the call graph of res to call sites and methods. Edges
// are ordered by caller signature, call site and callee signature.
func CallEdges(res *pta.Result) []Edge {
	type key struct {
		site   *ir.Invoke
		callee *ir.Method
		kind   ir.CallKind
	}
	seen := map[key]bool{}

	var edges []Edge
	for e := range res.CallGraph.Edges() {
		_, inv := res.CSManager.CallSite(e.Site)
		_, callee := res.CSManager.Method(e.Callee)
		if k := (key{inv, callee, e.Kind}); !seen[k] {
			seen[k] = true
			edges = append(edges, Edge{inv, callee, e.Kind})
		}
	}

	slices.SortFunc(edges, func(a, b Edge) int {
		return cmp.Or(
			cmp.Compare(a.Site.Container.Signature(), b.Site.Container.Signature()),
			cmp.Compare(a.Site.Index, b.Site.Index),
			cmp.Compare(a.Callee.Signature(), b.Callee.Signature()),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
	return edges
}

// Text writes the context-insensitive points-to sets of all variables of
// reachable methods, the call edges and the warnings of res.
func Text(w io.Writer, res *pta.Result) error {
	ew := &errWriter{w: w}

	ew.printf("Selector: %s\n", res.Selector)
	for _, m := range res.ReachableMethods() {
		var lines []string
		for _, v := range m.Vars() {
			objs := res.PointsTo(v)
			if len(objs) == 0 {
				continue
			}
			labels := make([]string, len(objs))
			for i, o := range objs {
				labels[i] = o.Label()
			}
			lines = append(lines, fmt.Sprintf("  %s %s [%s]\n",
				v.Name, arrowColor.Sprint("->"), strings.Join(labels, ", ")))
		}

		ew.printf("\n")
		ew.colorf(methodColor, "%s", m.Signature())
		ew.printf("\n%s", strings.Join(lines, ""))
	}

	ew.printf("\nCall edges:\n")
	for _, e := range CallEdges(res) {
		ew.printf("  %s %s %s (%s)\n", e.Site.Site(), arrowColor.Sprint("->"), e.Callee.Signature(), e.Kind)
	}

	if len(res.Warnings) == 0 {
		ew.printf("\nWarnings: none\n")
	} else {
		ew.printf("\nWarnings:\n")
		for _, warn := range res.Warnings {
			ew.colorf(warnColor, "  %s\n", warn)
		}
	}
	return ew.err
}

// Stats writes a one-line summary of the statistics of a run.
func Stats(w io.Writer, name string, st pta.Stats) error {
	_, err := fmt.Fprintf(w,
		"%-12s reachable=%d cs-methods=%d call-edges=%d contexts=%d cs-vars=%d cs-objs=%d pfg-edges=%d steps=%d time=%s\n",
		name, st.ReachableMethods, st.CSMethods, st.CallEdges, st.Contexts,
		st.CSVars, st.CSObjs, st.PFGEdges, st.Steps, st.Duration)
	return err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, args...)
	}
}

func (ew *errWriter) colorf(c *color.Color, format string, args ...any) {
	if ew.err == nil {
		_, ew.err = c.Fprintf(ew.w, format, args...)
	}
}

type jsonEdge struct {
	Site   string `json:"site"`
	Kind   string `json:"kind"`
	Callee string `json:"callee"`
}

type jsonReport struct {
	Selector  string              `json:"selector"`
	Reachable []string            `json:"reachable"`
	PointsTo  map[string][]string `json:"pointsTo"`
	CallEdges []jsonEdge          `json:"callEdges"`
	Warnings  []string            `json:"warnings"`
	Stats     pta.Stats           `json:"stats"`
}

// JSON writes res as an indented JSON document. Variables are keyed by
// "<signature>/name".
func JSON(w io.Writer, res *pta.Result) error {
	r := jsonReport{
		Selector:  res.Selector.String(),
		Reachable: []string{},
		PointsTo:  map[string][]string{},
		CallEdges: []jsonEdge{},
		Warnings:  []string{},
		Stats:     res.Stats,
	}

	for _, m := range res.ReachableMethods() {
		r.Reachable = append(r.Reachable, m.Signature())
		for _, v := range m.Vars() {
			if objs := res.PointsTo(v); len(objs) > 0 {
				key := m.Signature() + "/" + v.Name
				for _, o := range objs {
					r.PointsTo[key] = append(r.PointsTo[key], o.String())
				}
			}
		}
	}
	for _, e := range CallEdges(res) {
		r.CallEdges = append(r.CallEdges, jsonEdge{e.Site.Site(), e.Kind.String(), e.Callee.Signature()})
	}
	for _, warn := range res.Warnings {
		r.Warnings = append(r.Warnings, warn.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// DOT returns the context-insensitive call graph of res in Graphviz DOT
// syntax.
func DOT(res *pta.Result) []byte {
	var b strings.Builder
	b.WriteString("digraph CallGraph {\n")
	b.WriteString("\trankdir=\"LR\";\n")
	b.WriteString("\tnode [shape=\"box\" fontname=\"Verdana\"];\n")

	for _, m := range res.ReachableMethods() {
		fmt.Fprintf(&b, "\t%q;\n", m.Signature())
	}

	type key struct {
		caller, callee *ir.Method
		kind           ir.CallKind
	}
	seen := map[key]bool{}
	for _, e := range CallEdges(res) {
		k := key{e.Site.Container, e.Callee, e.Kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		fmt.Fprintf(&b, "\t%q -> %q [label=%q];\n", k.caller.Signature(), k.callee.Signature(), k.kind.String())
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

// Render lays out a DOT graph and writes it to w in the given format, e.g.
// "svg" or "png".
func Render(w io.Writer, dot []byte, format string) (err error) {
	graph, err := graphviz.ParseBytes(dot)
	if err != nil {
		return fmt.Errorf("parsing call graph: %w", err)
	}

	g := graphviz.New()
	defer func() {
		if cerr := graph.Close(); err == nil {
			err = cerr
		}
		if cerr := g.Close(); err == nil {
			err = cerr
		}
	}()

	return g.Render(graph, graphviz.Format(format), w)
}
