package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/irload"
	"github.com/BarrensZeppelin/pta/report"
)

const program = `
classes:
  - name: A
  - name: Id
    methods:
      - sig: static id(java.lang.Object x)
        body: return x
  - name: Main
    methods:
      - sig: static main()
        body: |
          a = new A
          b = Id.id(a)
          s = a.toString()
`

func analyze(t *testing.T) *pta.Result {
	t.Helper()
	prog, err := irload.LoadProgramFromSource(program)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{
		Program:  prog,
		Selector: cs.CI,
		Logger:   logger,
	})
	require.NoError(t, err)
	return res
}

func TestText(t *testing.T) {
	color.NoColor = true
	res := analyze(t)

	var out bytes.Buffer
	require.NoError(t, report.Text(&out, res))
	goldie.New(t).Assert(t, "text", out.Bytes())
}

func TestDOT(t *testing.T) {
	res := analyze(t)
	goldie.New(t).Assert(t, "callgraph", report.DOT(res))
}

func TestCallEdges(t *testing.T) {
	res := analyze(t)
	edges := report.CallEdges(res)
	require.Len(t, edges, 2)
	assert.Equal(t, "<Id: id(java.lang.Object)>", edges[0].Callee.Signature())
	assert.Equal(t, 1, edges[0].Site.Index)
	assert.Equal(t, "<java.lang.Object: toString()>", edges[1].Callee.Signature())
}

func TestJSON(t *testing.T) {
	res := analyze(t)

	var out bytes.Buffer
	require.NoError(t, report.JSON(&out, res))

	var doc struct {
		Selector  string
		Reachable []string
		PointsTo  map[string][]string
		CallEdges []struct{ Site, Kind, Callee string }
		Warnings  []string
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "ci", doc.Selector)
	assert.Len(t, doc.Reachable, 3)
	assert.Len(t, doc.PointsTo["<Main: main()>/b"], 1)
	assert.Contains(t, doc.PointsTo["<Main: main()>/b"][0], "new A")
	assert.Equal(t, "virtual", doc.CallEdges[1].Kind)
	assert.Empty(t, doc.Warnings)
}

func TestStats(t *testing.T) {
	res := analyze(t)

	var out bytes.Buffer
	require.NoError(t, report.Stats(&out, "ci", res.Stats))
	assert.Contains(t, out.String(), "reachable=3")
	assert.Contains(t, out.String(), "call-edges=2")
}

func TestRender(t *testing.T) {
	res := analyze(t)

	var out bytes.Buffer
	require.NoError(t, report.Render(&out, report.DOT(res), "svg"))
	assert.Contains(t, out.String(), "<svg")
}
