package irload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BarrensZeppelin/pta/ir"
)

type bodyParser struct {
	*loader
	method *ir.Method
	line   int
}

func (p *bodyParser) errorf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: line %d: %w: %s", p.method, p.line, err, fmt.Sprintf(format, args...))
}

func (p *bodyParser) parse(body string) error {
	for i, line := range strings.Split(body, "\n") {
		p.line = i + 1
		if idx := indexOutsideQuotes(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := p.statement(line); err != nil {
			return err
		}
	}
	return nil
}

func (p *bodyParser) statement(line string) error {
	switch {
	case line == "return":
		p.method.Append(&ir.Return{})
		return nil
	case strings.HasPrefix(line, "return "):
		v, err := p.local(strings.TrimSpace(line[len("return "):]))
		if err != nil {
			return err
		}
		p.method.Append(&ir.Return{Value: v})
		return nil
	case strings.HasPrefix(line, "throw "):
		v, err := p.local(strings.TrimSpace(line[len("throw "):]))
		if err != nil {
			return err
		}
		p.method.Append(&ir.Throw{Value: v})
		return nil
	}

	eq := indexOutsideQuotes(line, '=')
	if eq < 0 {
		// A call whose result is discarded.
		return p.call(nil, line)
	}

	lhs := strings.TrimSpace(line[:eq])
	rhs := strings.TrimSpace(line[eq+1:])
	if lhs == "" || rhs == "" {
		return p.errorf(ir.ErrMalformedIR, "incomplete assignment %q", line)
	}

	if identRe.MatchString(lhs) {
		return p.assignTo(p.method.Var(lhs), rhs)
	}
	return p.store(lhs, rhs)
}

// assignTo handles statements of the form "x = rhs".
func (p *bodyParser) assignTo(x *ir.Var, rhs string) error {
	switch {
	case rhs == "null":
		return nil

	case strings.HasPrefix(rhs, "new "):
		typ, err := p.parseType(strings.TrimSpace(rhs[len("new "):]))
		if err != nil {
			return p.errorf(err, "%s", rhs)
		}
		if typ.Class.Primitive && !typ.IsArray() {
			return p.errorf(ir.ErrMalformedIR, "allocation of primitive type %s", typ)
		}
		if typ.Class.Abstract && !typ.IsArray() {
			return p.errorf(ir.ErrMalformedIR, "allocation of abstract type %s", typ)
		}
		s := &ir.New{LValue: x, Obj: p.prog.NewObj(p.method, typ)}
		s.Obj.Site = s
		p.method.Append(s)
		return nil

	case strings.HasPrefix(rhs, `"`):
		str, err := strconv.Unquote(rhs)
		if err != nil {
			return p.errorf(ir.ErrMalformedIR, "invalid string literal %s", rhs)
		}
		return p.constant(x, str)

	case strings.HasSuffix(rhs, ".class"):
		typ, err := p.parseType(strings.TrimSuffix(rhs, ".class"))
		if err != nil {
			return p.errorf(err, "%s", rhs)
		}
		return p.constant(x, ir.ClassLiteral{Type: typ})

	case strings.HasPrefix(rhs, "("):
		end := strings.IndexByte(rhs, ')')
		if end < 0 {
			return p.errorf(ir.ErrMalformedIR, "invalid cast %q", rhs)
		}
		typ, err := p.parseType(strings.TrimSpace(rhs[1:end]))
		if err != nil {
			return p.errorf(err, "%s", rhs)
		}
		y, err := p.local(strings.TrimSpace(rhs[end+1:]))
		if err != nil {
			return err
		}
		p.method.Append(&ir.Cast{LValue: x, RValue: y, Type: typ})
		return nil

	case strings.HasSuffix(rhs, ")") || strings.Contains(rhs, " catch "):
		return p.call(x, rhs)

	case strings.HasSuffix(rhs, "]"):
		base, err := p.arrayBase(rhs)
		if err != nil {
			return err
		}
		p.method.Append(&ir.ArrayLoad{LValue: x, Base: base})
		return nil

	case identRe.MatchString(rhs):
		p.method.Append(&ir.Assign{LValue: x, RValue: p.method.Var(rhs)})
		return nil
	}

	base, field, err := p.member(rhs)
	if err != nil {
		return err
	}
	if base == nil {
		p.method.Append(&ir.StaticLoad{LValue: x, Field: field})
	} else {
		p.method.Append(&ir.InstanceLoad{LValue: x, Base: base, Field: field})
	}
	return nil
}

// store handles field and array stores: "lhs = y".
func (p *bodyParser) store(lhs, rhs string) error {
	y, err := p.local(rhs)
	if err != nil {
		return err
	}

	if strings.HasSuffix(lhs, "]") {
		base, err := p.arrayBase(lhs)
		if err != nil {
			return err
		}
		p.method.Append(&ir.ArrayStore{Base: base, RValue: y})
		return nil
	}

	base, field, err := p.member(lhs)
	if err != nil {
		return err
	}
	if base == nil {
		p.method.Append(&ir.StaticStore{Field: field, RValue: y})
	} else {
		p.method.Append(&ir.InstanceStore{Base: base, Field: field, RValue: y})
	}
	return nil
}

func (p *bodyParser) constant(x *ir.Var, value any) error {
	obj, err := p.prog.ConstObj(value)
	if err != nil {
		return p.errorf(err, "%v", value)
	}
	p.method.Append(&ir.New{LValue: x, Obj: obj})
	return nil
}

func (p *bodyParser) local(name string) (*ir.Var, error) {
	if !identRe.MatchString(name) {
		return nil, p.errorf(ir.ErrMalformedIR, "expected variable, found %q", name)
	}
	return p.method.Var(name), nil
}

// arrayBase parses "y[...]" and returns y.
func (p *bodyParser) arrayBase(s string) (*ir.Var, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return nil, p.errorf(ir.ErrMalformedIR, "invalid array access %q", s)
	}
	return p.local(strings.TrimSpace(s[:open]))
}

// splitClassPrefix splits a dotted path "a.b.C.m" into the longest prefix
// naming a class and the remaining member name.
func (p *bodyParser) splitClassPrefix(path string) (*ir.Class, string) {
	for i := strings.LastIndexByte(path, '.'); i > 0; i = strings.LastIndexByte(path[:i], '.') {
		if c := p.prog.Class(path[:i]); c != nil {
			return c, path[i+1:]
		}
	}
	return nil, ""
}

// member resolves a field reference: "C.f", "y.f" or "y.<C: f>". The
// returned base variable is nil for static fields.
func (p *bodyParser) member(s string) (*ir.Var, *ir.Field, error) {
	if i := strings.Index(s, ".<"); i >= 0 && strings.HasSuffix(s, ">") {
		base, err := p.local(s[:i])
		if err != nil {
			return nil, nil, err
		}

		ref := s[i+2 : len(s)-1]
		colon := strings.Index(ref, ": ")
		if colon < 0 {
			return nil, nil, p.errorf(ir.ErrMalformedIR, "invalid field reference %q", s)
		}
		class := p.prog.Class(ref[:colon])
		if class == nil {
			return nil, nil, p.errorf(ir.ErrUnresolvedSignature, "class %s", ref[:colon])
		}
		field := class.LookupField(strings.TrimSpace(ref[colon+2:]))
		if field == nil || field.Static {
			return nil, nil, p.errorf(ir.ErrUnresolvedSignature, "instance field %s", s)
		}
		return base, field, nil
	}

	if class, name := p.splitClassPrefix(s); class != nil {
		field := class.LookupField(name)
		if field == nil || !field.Static {
			return nil, nil, p.errorf(ir.ErrUnresolvedSignature, "static field %s.%s", class.Name, name)
		}
		return nil, field, nil
	}

	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return nil, nil, p.errorf(ir.ErrMalformedIR, "invalid field access %q", s)
	}
	base, err := p.local(s[:dot])
	if err != nil {
		return nil, nil, err
	}

	name := s[dot+1:]
	var found []*ir.Field
	for _, c := range p.prog.Classes() {
		if f := c.Field(name); f != nil && !f.Static {
			found = append(found, f)
		}
	}

	switch len(found) {
	case 0:
		return nil, nil, p.errorf(ir.ErrUnresolvedSignature, "no instance field named %s", name)
	case 1:
		return base, found[0], nil
	default:
		return nil, nil, p.errorf(ir.ErrMalformedIR,
			"field name %s is ambiguous (%d declarations), use %s.<C: %s>", name, len(found), s[:dot], name)
	}
}

// call parses a call expression and appends the resulting Invoke.
func (p *bodyParser) call(result *ir.Var, expr string) error {
	inv := &ir.Invoke{Result: result}

	if i := strings.LastIndex(expr, " catch "); i >= 0 {
		c, err := p.local(strings.TrimSpace(expr[i+len(" catch "):]))
		if err != nil {
			return err
		}
		inv.Catch = c
		expr = strings.TrimSpace(expr[:i])
	}

	special, dynamic := false, false
	if rest, ok := strings.CutPrefix(expr, "special "); ok {
		special, expr = true, strings.TrimSpace(rest)
	} else if rest, ok := strings.CutPrefix(expr, "dynamic "); ok {
		dynamic, expr = true, strings.TrimSpace(rest)
	}

	open := strings.LastIndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return p.errorf(ir.ErrMalformedIR, "invalid statement %q", expr)
	}
	if args := strings.TrimSpace(expr[open+1 : len(expr)-1]); args != "" {
		for _, a := range strings.Split(args, ",") {
			v, err := p.local(strings.TrimSpace(a))
			if err != nil {
				return err
			}
			inv.Args = append(inv.Args, v)
		}
	}
	callee := strings.TrimSpace(expr[:open])

	var err error
	switch {
	case strings.HasPrefix(callee, "<"):
		// Explicit static call.
		if special || dynamic {
			return p.errorf(ir.ErrMalformedIR, "%q requires a receiver", expr)
		}
		inv.Kind = ir.CallStatic
		inv.Ref, err = p.explicitRef(callee)

	case strings.Contains(callee, ".<"):
		i := strings.Index(callee, ".<")
		if inv.Base, err = p.local(callee[:i]); err != nil {
			return err
		}
		if inv.Ref, err = p.explicitRef(callee[i+1:]); err != nil {
			return err
		}
		inv.Kind = p.instanceKind(inv.Ref.Class, special, dynamic)

	default:
		dot := strings.LastIndexByte(callee, '.')
		if dot <= 0 {
			return p.errorf(ir.ErrMalformedIR, "invalid callee %q", callee)
		}

		if class, name := p.splitClassPrefix(callee); class != nil && !special && !dynamic {
			inv.Kind = ir.CallStatic
			inv.Ref, err = p.resolveStatic(class, name, len(inv.Args))
			break
		}

		if inv.Base, err = p.local(callee[:dot]); err != nil {
			return err
		}
		name := callee[dot+1:]
		if dynamic {
			inv.Ref, err = p.resolveByName(name, -1)
		} else {
			inv.Ref, err = p.resolveByName(name, len(inv.Args))
		}
		if err == nil {
			inv.Kind = p.instanceKind(inv.Ref.Class, special, dynamic)
		}
	}
	if err != nil {
		return err
	}

	p.method.Append(inv)
	return nil
}

func (p *bodyParser) instanceKind(class *ir.Class, special, dynamic bool) ir.CallKind {
	switch {
	case special:
		return ir.CallSpecial
	case dynamic:
		return ir.CallDynamic
	case class != nil && class.Interface:
		return ir.CallInterface
	default:
		return ir.CallVirtual
	}
}

// explicitRef parses "<C: m(T1,T2)>". The method itself is not required to
// exist; unresolvable references are reported by the solver.
func (p *bodyParser) explicitRef(s string) (ir.MethodRef, error) {
	class, sub, err := ir.SplitSignature(s)
	if err != nil {
		return ir.MethodRef{}, p.errorf(err, "%s", s)
	}
	c := p.prog.Class(class)
	if c == nil {
		return ir.MethodRef{}, p.errorf(ir.ErrUnresolvedSignature, "class %s", class)
	}
	return ir.MethodRef{Class: c, Sub: ir.Subsignature(strings.ReplaceAll(string(sub), " ", ""))}, nil
}

func (p *bodyParser) resolveStatic(class *ir.Class, name string, arity int) (ir.MethodRef, error) {
	for k := class; k != nil; k = k.Super {
		for _, m := range k.Methods() {
			if m.Name == name && m.Static && len(m.Params) == arity {
				return ir.MethodRef{Class: class, Sub: m.Sub}, nil
			}
		}
	}
	return ir.MethodRef{}, p.errorf(ir.ErrUnresolvedSignature,
		"no static method %s with %d parameters in %s", name, arity, class.Name)
}

// resolveByName finds the unique instance-method subsignature with the given
// name and arity (any arity if arity < 0) declared in the program.
func (p *bodyParser) resolveByName(name string, arity int) (ir.MethodRef, error) {
	var ref ir.MethodRef
	subs := map[ir.Subsignature]bool{}
	for _, c := range p.prog.Classes() {
		for _, m := range c.Methods() {
			if m.Name != name || m.Static || (arity >= 0 && len(m.Params) != arity) {
				continue
			}
			if !subs[m.Sub] {
				subs[m.Sub] = true
				ref = ir.MethodRef{Class: c, Sub: m.Sub}
			}
		}
	}

	switch len(subs) {
	case 0:
		return ref, p.errorf(ir.ErrUnresolvedSignature, "no instance method %s with %d parameters", name, arity)
	case 1:
		return ref, nil
	default:
		return ref, p.errorf(ir.ErrMalformedIR, "method name %s is ambiguous, use an explicit <C: %s(...)> reference", name, name)
	}
}

// indexOutsideQuotes returns the index of the first occurrence of c that is
// neither inside a string literal nor inside angle brackets, or -1.
func indexOutsideQuotes(s string, c byte) int {
	quoted, depth := false, 0
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '\\' && quoted:
			i++
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '<':
			depth++
		case ch == '>' && depth > 0:
			depth--
		case ch == c && depth == 0:
			return i
		}
	}
	return -1
}
