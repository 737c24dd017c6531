package invokedynamic_test

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/internal/slices"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/irload"
	"github.com/BarrensZeppelin/pta/plugin/invokedynamic"
)

const mainSig = "<Main: main()>"

const handles = `
classes:
  - name: A
  - name: B
  - name: Greeter
    methods:
      - sig: greet(java.lang.Object x)
        body: return x
      - sig: static make(java.lang.Object y)
        body: return y
  - name: Loud
    extends: Greeter
    methods:
      - sig: greet(java.lang.Object x)
        body: |
          b = new B
          return b
  - name: Box
    fields: [java.lang.Object val]
    methods:
      - sig: <init>(java.lang.Object v)
        body: this.val = v
  - name: Main
    methods:
      - sig: static main()
        body: |
          l = java.lang.invoke.MethodHandles.lookup()
          c = Greeter.class
          n = "greet"
          h = l.findVirtual(c, n, t)
          g = new Greeter
          a = new A
          r = dynamic h.invokeExact(g, a)
          loud = new Loud
          r2 = dynamic h.invokeExact(loud, a)
          sn = "make"
          hs = l.findStatic(c, sn, t)
          r3 = dynamic hs.invoke(a)
          bc = Box.class
          hc = l.findConstructor(bc, t)
          box = dynamic hc.invoke(a)
          v = box.val
`

func run(t *testing.T, src string, withPlugin bool) (*ir.Program, *pta.Result) {
	t.Helper()
	prog, err := irload.LoadProgramFromSource(src)
	require.NoError(t, err)

	var plugins []pta.Plugin
	if withPlugin {
		plugins = append(plugins, invokedynamic.New())
	}

	logger, _ := logtest.NewNullLogger()
	res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{
		Program:  prog,
		Selector: cs.KObject(1),
		Plugins:  plugins,
		Logger:   logger,
	})
	require.NoError(t, err)
	return prog, res
}

func pointsTo(t *testing.T, prog *ir.Program, res *pta.Result, name string) []*ir.Obj {
	t.Helper()
	v := prog.Method(mainSig).LookupVar(name)
	require.NotNil(t, v, "no variable %s", name)
	return res.PointsTo(v)
}

func labels(objs []*ir.Obj) []string {
	return slices.Map(objs, (*ir.Obj).Label)
}

func invokeOf(t *testing.T, prog *ir.Program, result string) *ir.Invoke {
	t.Helper()
	for _, inv := range prog.Method(mainSig).Invokes() {
		if inv.Result != nil && inv.Result.Name == result {
			return inv
		}
	}
	require.FailNow(t, "no call assigning "+result)
	return nil
}

func TestMethodHandles(t *testing.T) {
	prog, res := run(t, handles, true)

	t.Run("Lookup", func(t *testing.T) {
		assert.Equal(t, []string{"MethodHandle{virtual <Greeter: greet(java.lang.Object)>}"},
			labels(pointsTo(t, prog, res, "h")))
		assert.Equal(t, []string{"MethodHandle{static <Greeter: make(java.lang.Object)>}"},
			labels(pointsTo(t, prog, res, "hs")))
	})

	t.Run("Virtual", func(t *testing.T) {
		assert.Equal(t, []string{"new A"}, labels(pointsTo(t, prog, res, "r")))
		assert.Equal(t, []string{"new B"}, labels(pointsTo(t, prog, res, "r2")),
			"Virtual handles should dispatch on the receiver")

		callees := slices.Map(res.Callees(invokeOf(t, prog, "r2")), (*ir.Method).Signature)
		assert.Equal(t, []string{"<Loud: greet(java.lang.Object)>"}, callees)
	})

	t.Run("Static", func(t *testing.T) {
		assert.Equal(t, []string{"new A"}, labels(pointsTo(t, prog, res, "r3")))
	})

	t.Run("Constructor", func(t *testing.T) {
		boxes := pointsTo(t, prog, res, "box")
		require.Len(t, boxes, 1)
		assert.Equal(t, ir.MockObj, boxes[0].Kind)
		assert.Equal(t, "Box", boxes[0].Type.String())
		assert.Equal(t, []string{"new A"}, labels(pointsTo(t, prog, res, "v")))
		assert.True(t, res.IsReachable(prog.Method("<Box: <init>(java.lang.Object)>")))
	})

	t.Run("CallEdges", func(t *testing.T) {
		for e := range res.CallGraph.EdgesOutOf(findSite(t, res, invokeOf(t, prog, "r3"))) {
			assert.Equal(t, ir.CallOther, e.Kind)
		}
	})
}

func findSite(t *testing.T, res *pta.Result, inv *ir.Invoke) cs.CSCallSite {
	t.Helper()
	for _, m := range res.CSManager.MethodsOf(inv.Container) {
		for site := range res.CallGraph.CallSitesIn(m) {
			if _, i := res.CSManager.CallSite(site); i == inv {
				return site
			}
		}
	}
	require.FailNow(t, "call site not in call graph")
	return 0
}

func TestWithoutPlugin(t *testing.T) {
	prog, res := run(t, handles, false)
	assert.Empty(t, pointsTo(t, prog, res, "h"))
	assert.Empty(t, pointsTo(t, prog, res, "r"))
	assert.False(t, res.IsReachable(prog.Method("<Greeter: greet(java.lang.Object)>")))
}

func TestUnmodeledCalls(t *testing.T) {
	_, res := run(t, `
classes:
  - name: A
    methods:
      - sig: static make(java.lang.Object y)
        body: return y
  - name: Main
    methods:
      - sig: static main()
        body: |
          l = java.lang.invoke.MethodHandles.lookup()
          c = A.class
          n = "missing"
          h = l.findStatic(c, n, t)
          m = "make"
          hs = l.findStatic(c, m, t)
          a = new A
          r = dynamic hs.invoke(a, a)
`, true)

	var kinds []pta.WarningKind
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []pta.WarningKind{pta.UnmodeledCall, pta.UnmodeledCall}, kinds)
}

func TestVirtualHandleReceivers(t *testing.T) {
	prog, res := run(t, `
classes:
  - name: A
  - name: B
  - name: Greeter
    methods:
      - sig: greet(java.lang.Object x)
        body: return x
  - name: Loud
    extends: Greeter
    methods:
      - sig: greet(java.lang.Object x)
        body: |
          b = new B
          return b
  - name: Main
    methods:
      - sig: static main()
        body: |
          l = java.lang.invoke.MethodHandles.lookup()
          c = Greeter.class
          n = "greet"
          h = l.findVirtual(c, n, t)
          g = new Greeter
          loud = new Loud
          x = g
          x = loud
          a = new A
          r = dynamic h.invokeExact(x, a)
`, true)

	assert.ElementsMatch(t, []string{"new A", "new B"}, labels(pointsTo(t, prog, res, "r")))

	for sig, want := range map[string]string{
		"<Greeter: greet(java.lang.Object)>": "new Greeter",
		"<Loud: greet(java.lang.Object)>":    "new Loud",
	} {
		this := prog.Method(sig).This
		assert.Equal(t, []string{want}, labels(res.PointsTo(this)),
			"Receivers should only reach the method they dispatch to")

		for _, cv := range res.CSManager.VarsOf(this) {
			ctx, _ := res.CSManager.Var(cv)
			assert.Len(t, res.VarPointsTo(ctx, this), 1, "this should be the receiver of its context")
		}
	}
}
