package pta_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/internal/slices"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/irload"
	"github.com/BarrensZeppelin/pta/pts"
)

func load(t testing.TB, src string) *ir.Program {
	t.Helper()
	prog, err := irload.LoadProgramFromSource(src)
	require.NoError(t, err)
	return prog
}

func analyze(t testing.TB, prog *ir.Program, sel cs.Selector, plugins ...pta.Plugin) *pta.Result {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{
		Program:  prog,
		Selector: sel,
		Plugins:  plugins,
		Logger:   logger,
	})
	require.NoError(t, err)
	return res
}

// local returns the variable with the given name in the method with the
// given signature.
func local(t testing.TB, prog *ir.Program, sig, name string) *ir.Var {
	t.Helper()
	m := prog.Method(sig)
	require.NotNil(t, m, "no method %s", sig)
	v := m.LookupVar(name)
	require.NotNil(t, v, "no variable %s in %s", name, sig)
	return v
}

func labels(objs []*ir.Obj) []string {
	return slices.Map(objs, (*ir.Obj).Label)
}

func signatures(ms []*ir.Method) []string {
	return slices.Map(ms, (*ir.Method).Signature)
}

const mainSig = "<Main: main()>"

func TestAnalyze(t *testing.T) {
	t.Run("TwoAllocationMerge", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: B
  - name: Main
    methods:
      - sig: static main()
        body: |
          a = new A
          b = new B
          c = a
          c = b
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{"new A", "new B"},
			labels(res.PointsTo(local(t, prog, mainSig, "c"))))
		assert.Equal(t, []string{"new A"},
			labels(res.PointsTo(local(t, prog, mainSig, "a"))))
		assert.True(t, res.MayAlias(local(t, prog, mainSig, "a"), local(t, prog, mainSig, "c")))
		assert.False(t, res.MayAlias(local(t, prog, mainSig, "a"), local(t, prog, mainSig, "b")))
	})

	t.Run("Dispatch", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: Animal
    methods:
      - {sig: speak(), body: return}
  - name: Dog
    extends: Animal
    methods:
      - {sig: speak(), body: return}
  - name: Cat
    extends: Animal
    methods:
      - {sig: speak(), body: return}
  - name: Bird
    extends: Animal
    methods:
      - {sig: speak(), body: return}
  - name: Main
    methods:
      - sig: static main()
        body: |
          x = new Dog
          y = new Cat
          x = y
          x.speak()
`)
		res := analyze(t, prog, cs.CI)
		call := prog.Method(mainSig).Invokes()[0]
		assert.Equal(t, ir.CallVirtual, call.Kind)
		assert.Equal(t, []string{"<Cat: speak()>", "<Dog: speak()>"},
			signatures(res.Callees(call)))

		assert.True(t, res.IsReachable(prog.Method("<Dog: speak()>")))
		assert.False(t, res.IsReachable(prog.Method("<Animal: speak()>")))
		assert.False(t, res.IsReachable(prog.Method("<Bird: speak()>")))
		assert.Empty(t, res.Warnings)
	})

	t.Run("FieldIsolation", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: B
  - name: Box
    fields: [java.lang.Object f]
  - name: Main
    methods:
      - sig: static main()
        body: |
          a = new Box
          b = new Box
          x = new A
          y = new B
          a.f = x
          b.f = y
          r = a.f
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{"new A"}, labels(res.PointsTo(local(t, prog, mainSig, "r"))))

		box := res.PointsTo(local(t, prog, mainSig, "b"))
		require.Len(t, box, 1)
		f := prog.Class("Box").Field("f")
		assert.Equal(t, []string{"new B"}, labels(res.FieldPointsTo(box[0], f)))
	})

	t.Run("StaticFields", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: G
    fields: [static java.lang.Object g]
  - name: Main
    methods:
      - sig: static store()
        body: |
          x = new A
          G.g = x
      - sig: static main()
        body: |
          Main.store()
          y = G.g
`)
		res := analyze(t, prog, cs.KCallSite(1))
		assert.Equal(t, []string{"new A"}, labels(res.PointsTo(local(t, prog, mainSig, "y"))))
		assert.Equal(t, []string{"new A"}, labels(res.StaticPointsTo(prog.Class("G").Field("g"))))
	})

	t.Run("Cast", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: A2
    extends: A
  - name: B
  - name: Main
    methods:
      - sig: static main()
        body: |
          z = new A2
          y = new B
          z = y
          c = (A) z
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{"new A2"}, labels(res.PointsTo(local(t, prog, mainSig, "c"))))
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, pta.FilteredObject, res.Warnings[0].Kind)
	})

	t.Run("Arrays", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: B
  - name: Main
    methods:
      - sig: static main()
        body: |
          arr = new A[]
          x = new A
          y = new B
          arr[*] = x
          arr[*] = y
          r = arr[*]
          objs = new java.lang.Object[]
          objs[*] = y
          o = objs[*]
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{"new A"}, labels(res.PointsTo(local(t, prog, mainSig, "r"))),
			"Objects not assignable to the element type should be dropped")
		assert.Equal(t, []string{"new B"}, labels(res.PointsTo(local(t, prog, mainSig, "o"))))

		arr := res.PointsTo(local(t, prog, mainSig, "arr"))
		require.Len(t, arr, 1)
		assert.Equal(t, []string{"new A"}, labels(res.ArrayPointsTo(arr[0])))
	})

	t.Run("Exceptions", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: Main
    methods:
      - sig: static thrower()
        body: |
          e = new java.lang.Throwable
          throw e
      - sig: static main()
        body: |
          Main.thrower() catch h
          Main.thrower()
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{"new java.lang.Throwable"},
			labels(res.PointsTo(local(t, prog, mainSig, "h"))))
		assert.Equal(t, []string{"new java.lang.Throwable"},
			labels(res.PointsTo(prog.Method(mainSig).Exception)),
			"Uncaught exceptions should propagate to the caller")
	})

	t.Run("SpecialCall", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: P
    fields: [java.lang.Object v]
    methods:
      - sig: <init>(java.lang.Object x)
        body: this.v = x
  - name: Main
    methods:
      - sig: static main()
        body: |
          a = new A
          p = new P
          special p.<P: <init>(java.lang.Object)>(a)
          r = p.v
`)
		res := analyze(t, prog, cs.KObject(1))
		call := prog.Method(mainSig).Invokes()[0]
		assert.Equal(t, ir.CallSpecial, call.Kind)
		assert.Equal(t, []string{"<P: <init>(java.lang.Object)>"}, signatures(res.Callees(call)))
		assert.Equal(t, []string{"new A"}, labels(res.PointsTo(local(t, prog, mainSig, "r"))))
	})

	t.Run("StringConstants", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: Main
    methods:
      - sig: static main()
        body: |
          s = "hello"
          o = new java.lang.Object
          t = o.toString()
          c = Main.class
`)
		res := analyze(t, prog, cs.CI)
		assert.Equal(t, []string{`"hello"`}, labels(res.PointsTo(local(t, prog, mainSig, "s"))))
		assert.Equal(t, []string{`"java.lang.Object"`}, labels(res.PointsTo(local(t, prog, mainSig, "t"))))
		assert.Equal(t, []string{"Main.class"}, labels(res.PointsTo(local(t, prog, mainSig, "c"))))
	})
}

const contextProgram = `
classes:
  - name: A
  - name: B
  - name: Wrapper
    fields: [java.lang.Object val]
    methods:
      - sig: set(java.lang.Object v)
        body: this.val = v
      - sig: get()
        body: |
          r = this.val
          return r
  - name: Main
    methods:
      - sig: static id(java.lang.Object p)
        body: return p
      - sig: static main()
        body: |
          a = new A
          b = new B
          x = Main.id(a)
          y = Main.id(b)
          w1 = new Wrapper
          w2 = new Wrapper
          w1.set(a)
          w2.set(b)
          u = w1.get()
`

func TestContextSensitivity(t *testing.T) {
	prog := load(t, contextProgram)
	x := local(t, prog, mainSig, "x")
	u := local(t, prog, mainSig, "u")

	for _, tc := range []struct {
		sel  cs.Selector
		x, u []string
	}{
		{cs.CI, []string{"new A", "new B"}, []string{"new A", "new B"}},
		{cs.KCallSite(1), []string{"new A"}, []string{"new A"}},
		{cs.KObject(1), []string{"new A", "new B"}, []string{"new A"}},
		// Both wrappers are allocated in Main.
		{cs.KType(1), []string{"new A", "new B"}, []string{"new A", "new B"}},
	} {
		t.Run(tc.sel.String(), func(t *testing.T) {
			res := analyze(t, prog, tc.sel)
			assert.Equal(t, tc.x, labels(res.PointsTo(x)))
			assert.Equal(t, tc.u, labels(res.PointsTo(u)))
		})
	}

	t.Run("Contexts", func(t *testing.T) {
		res := analyze(t, prog, cs.KCallSite(2))
		id := prog.Method("<Main: id(java.lang.Object)>")
		assert.Len(t, res.CSManager.MethodsOf(id), 2, "id should be analysed in two contexts")

		p := id.ParamVars[0]
		for _, cv := range res.CSManager.VarsOf(p) {
			assert.Equal(t, 1, res.PointsToSet(cv.Pointer()).Len())
		}
	})
}

func TestRecursionTerminates(t *testing.T) {
	prog := load(t, `
classes:
  - name: Node
    fields: [Node next]
    methods:
      - sig: grow()
        body: |
          n = new Node
          this.next = n
          n.grow()
  - name: Main
    methods:
      - sig: static loop(java.lang.Object p)
        body: |
          r = Main.loop(p)
          return p
      - sig: static main()
        body: |
          o = new Node
          x = Main.loop(o)
          o.grow()
`)
	for _, sel := range []cs.Selector{cs.CI, cs.KCallSite(2), cs.KObject(2), cs.KType(3)} {
		t.Run(sel.String(), func(t *testing.T) {
			res := analyze(t, prog, sel)
			assert.Len(t, res.PointsTo(local(t, prog, mainSig, "x")), 1)
			for m := range res.CallGraph.Reachable() {
				ctx, _ := res.CSManager.Method(m)
				assert.LessOrEqual(t, res.CSManager.Contexts().Len(ctx), sel.K)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	prog := load(t, `
classes:
  - name: Shape
    abstract: true
    methods:
      - sig: abstract area()
  - name: Square
    extends: Shape
  - name: Main
    methods:
      - sig: static main()
        body: |
          s = new Square
          s.area()
          s.area()
`)

	logger, hook := logtest.NewNullLogger()
	res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{
		Program: prog,
		Logger:  logger,
	})
	require.NoError(t, err, "Unresolved dispatch is not fatal")

	for _, call := range prog.Method(mainSig).Invokes() {
		assert.Empty(t, res.Callees(call))
	}

	require.Len(t, res.Warnings, 2, "One warning per call site and receiver type")
	assert.Equal(t, pta.UnresolvedDispatch, res.Warnings[0].Kind)
	assert.Contains(t, res.Warnings[0].Message, "area()")

	var warned int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned++
		}
	}
	assert.Equal(t, 2, warned)
}

func TestFatalErrors(t *testing.T) {
	t.Run("UndeclaredSignature", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
  - name: Main
    methods:
      - sig: static main()
        body: |
          x = new A
          x.<A: missing()>()
`)
		logger, _ := logtest.NewNullLogger()
		res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{Program: prog, Logger: logger})
		assert.ErrorIs(t, err, ir.ErrUnresolvedSignature)
		assert.Nil(t, res)
	})

	t.Run("ArityMismatch", func(t *testing.T) {
		prog := load(t, `
classes:
  - name: A
    methods:
      - {sig: m(A a), body: return}
  - name: Main
    methods:
      - sig: static main()
        body: |
          x = new A
          x.<A: m(A)>()
`)
		logger, _ := logtest.NewNullLogger()
		_, err := pta.Analyze(context.Background(), pta.AnalysisConfig{Program: prog, Logger: logger})
		assert.ErrorIs(t, err, ir.ErrMalformedIR)
	})

	t.Run("PluginError", func(t *testing.T) {
		prog := load(t, contextProgram)
		sentinel := errors.New("boom")
		logger, _ := logtest.NewNullLogger()
		res, err := pta.Analyze(context.Background(), pta.AnalysisConfig{
			Program: prog,
			Logger:  logger,
			Plugins: []pta.Plugin{&recorder{t: t, failOn: sentinel}},
		})
		assert.ErrorIs(t, err, pta.ErrPluginFailed)
		assert.ErrorIs(t, err, sentinel)
		assert.Nil(t, res)
	})

	t.Run("Cancelled", func(t *testing.T) {
		prog := load(t, contextProgram)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		logger, _ := logtest.NewNullLogger()
		_, err := pta.Analyze(ctx, pta.AnalysisConfig{Program: prog, Logger: logger})
		assert.ErrorIs(t, err, pta.ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// seeder adds a mock object to a variable before the analysis starts.
type seeder struct {
	sig, name, typ string
}

func (*seeder) IsRelevantVar(*ir.Var) bool                                 { return false }
func (*seeder) HandleNewInvoke(*pta.Solver, *ir.Invoke) error              { return nil }
func (*seeder) HandleNewPointsToSet(*pta.Solver, cs.CSVar, *pts.Set) error { return nil }

func (sd *seeder) OnStart(s *pta.Solver) error {
	prog := s.Program()
	m := prog.Method(sd.sig)
	obj := s.HeapModel().MockObj("Seed", sd.name, ir.ClassType(prog.Class(sd.typ)), m)
	s.AddVarPointsTo(cs.Empty, m.LookupVar(sd.name), pts.New(s.CSManager().CSObj(cs.Empty, obj)))
	return nil
}

func TestSeededUnreachableMethod(t *testing.T) {
	prog := load(t, `
classes:
  - name: A
    methods:
      - sig: <init>()
        body: return
  - name: Helper
    methods:
      - sig: static unused(A p)
        body: |
          special p.<A: <init>()>()
  - name: Main
    methods:
      - sig: static main()
        body: return
`)

	res := analyze(t, prog, cs.CI, &seeder{"<Helper: unused(A)>", "p", "A"})

	init := prog.Method("<A: <init>()>")
	call := prog.Method("<Helper: unused(A)>").Invokes()[0]
	assert.Equal(t, []*ir.Method{init}, res.Callees(call))
	assert.Equal(t, []string{"Seed{p}"}, labels(res.PointsTo(init.This)))
}

// recorder observes every variable and checks that deltas only ever grow
// the points-to sets it has seen.
type recorder struct {
	t        *testing.T
	failOn   error
	seen     map[cs.CSVar]*pts.Set
	invokes  int
	edges    int
	finished bool
	snapshot pta.CallGraph
}

func (r *recorder) IsRelevantVar(*ir.Var) bool { return true }

func (r *recorder) HandleNewInvoke(s *pta.Solver, inv *ir.Invoke) error {
	r.invokes++
	return r.failOn
}

func (r *recorder) HandleNewPointsToSet(s *pta.Solver, v cs.CSVar, delta *pts.Set) error {
	if r.seen == nil {
		r.seen = map[cs.CSVar]*pts.Set{}
	}
	prev, found := r.seen[v]
	if !found {
		prev = &pts.Set{}
		r.seen[v] = prev
	}

	assert.False(r.t, delta.IsEmpty())
	assert.False(r.t, prev.Intersects(delta), "Deltas should only contain new objects")
	assert.True(r.t, prev.SubsetOf(s.PointsToSetOf(v.Pointer())))
	prev.AddAll(delta)
	return nil
}

func (r *recorder) OnStart(s *pta.Solver) error {
	r.snapshot = s.CallGraph()
	return nil
}

func (r *recorder) HandleNewCallEdge(s *pta.Solver, e pta.CallEdge) error {
	r.edges++
	return nil
}

func (r *recorder) OnFinish(s *pta.Solver) error {
	r.finished = true
	return nil
}

func TestMonotonicity(t *testing.T) {
	prog := load(t, contextProgram)
	for _, sel := range []cs.Selector{cs.CI, cs.KCallSite(2), cs.KObject(2)} {
		t.Run(sel.String(), func(t *testing.T) {
			rec := &recorder{t: t}
			res := analyze(t, prog, sel, rec)

			assert.True(t, rec.finished)
			assert.Equal(t, res.CallGraph.NumEdges(), rec.edges)
			assert.Equal(t, 0, rec.snapshot.NumReachable(), "Snapshots should not change")
			assert.Equal(t, len(prog.Method(mainSig).Invokes())+
				len(prog.Method("<Main: id(java.lang.Object)>").Invokes())+
				len(prog.Method("<Wrapper: get()>").Invokes())+
				len(prog.Method("<Wrapper: set(java.lang.Object)>").Invokes()), rec.invokes)

			for v, set := range rec.seen {
				assert.True(t, set.Equals(res.PointsToSet(v.Pointer())),
					"Accumulated deltas should equal the final points-to set of %s",
					res.CSManager.PointerString(v.Pointer()))
			}
		})
	}
}
