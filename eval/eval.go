// Package eval implements the FHIRPath runtime evaluator (spec component
// C7): a recursive walk over an ast.Node tree that threads a Context
// (current input, root, variables, Model Provider) through every step,
// invoking package registry for each function/operator call.
//
// Grounded on the teacher's fhirpath/invocation.go (evalInvocation's
// field-access-then-type-match fallback, and withNewEnvStackFrame's
// context-threaded scoping for defineVariable), restructured around the
// AST the core parser produces rather than an ANTLR parse tree.
package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/fhirpath-go/corefhirpath/ast"
	"github.com/fhirpath-go/corefhirpath/diag"
	"github.com/fhirpath-go/corefhirpath/internal/ops"
	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// Evaluator walks an AST against a Registry. The zero value is not usable;
// build one with New. An Evaluator is stateless and re-entrant (spec.md
// section 5, "the core is re-entrant"): the same instance can run many
// concurrent Evaluate calls against independent Contexts.
type Evaluator struct {
	Registry *registry.Registry
}

// New returns an Evaluator backed by reg.
func New(reg *registry.Registry) *Evaluator {
	return &Evaluator{Registry: reg}
}

// Evaluate is the public entry point: it builds a root Context over input
// and walks node, returning the result as a flat Collection plus any
// diagnostic/runtime error encountered.
func (e *Evaluator) Evaluate(ctx context.Context, node ast.Node, input value.Value, opts ...Option) (value.Collection, error) {
	ec := NewContext(input, opts...)
	v, err := e.Eval(ctx, node, ec)
	if err != nil {
		return nil, err
	}
	return value.ToCollection(v), nil
}

// Eval evaluates node against ec and returns its result. It is the entry
// point lambdaArg and every "discard the derived context" call site use;
// evalChain is the full recursive walker that additionally threads forward
// the (possibly defineVariable-extended) Context along a navigation chain.
func (e *Evaluator) Eval(ctx context.Context, node ast.Node, ec Context) (value.Value, error) {
	v, _, err := e.evalChain(ctx, node, ec)
	return v, err
}

// evalChain is the recursive walker. For most node kinds the returned
// Context is ec unchanged; PropertyAccess/MethodCall/IndexAccess/Filter/Path
// forward the receiver's (possibly env-extended) Context so a
// defineVariable earlier in the same chain stays visible to the rest of
// it — e.g. `x.defineVariable('n', 1).y` makes %n visible while evaluating
// `y` — without crossing into sibling Binary/FunctionCall operands, per the
// scoping rule documented on Context.
func (e *Evaluator) evalChain(goCtx context.Context, node ast.Node, ec Context) (value.Value, Context, error) {
	select {
	case <-goCtx.Done():
		return nil, ec, fmt.Errorf("eval: evaluation cancelled: %w", goCtx.Err())
	default:
	}

	switch n := node.(type) {
	case *ast.Literal:
		return value.ToCollection(n.Value), ec, nil

	case *ast.TypeInfoNode:
		return value.Of(value.TypeInfoObject{Namespace: value.Namespace(n.Target.Namespace), Name: n.Target.Name}), ec, nil

	case *ast.Variable:
		v, ok := ec.Variable(n.Name)
		if !ok {
			return value.Empty(), ec, nil
		}
		return v, ec, nil

	case *ast.Identifier:
		v, err := e.evalIdentifier(n, ec)
		return v, ec, err

	case *ast.Parenthesized:
		return e.evalChain(goCtx, n.Inner, ec)

	case *ast.CollectionLiteral:
		var out value.Collection
		for _, el := range n.Elements {
			v, err := e.Eval(goCtx, el, ec.withChildFrame())
			if err != nil {
				return nil, ec, err
			}
			out = append(out, value.ToCollection(v)...)
		}
		return out, ec, nil

	case *ast.Path:
		cur, baseEC, err := e.evalChain(goCtx, n.Base, ec)
		if err != nil {
			return nil, ec, err
		}
		for _, seg := range n.Segments {
			cur = e.property(baseEC, cur, seg)
		}
		return cur, baseEC, nil

	case *ast.PropertyAccess:
		recvVal, recvEC, err := e.evalChain(goCtx, n.Receiver, ec)
		if err != nil {
			return nil, ec, err
		}
		return e.property(recvEC, recvVal, n.Name), recvEC, nil

	case *ast.IndexAccess:
		recvVal, recvEC, err := e.evalChain(goCtx, n.Receiver, ec)
		if err != nil {
			return nil, ec, err
		}
		idxVal, err := e.Eval(goCtx, n.Index, recvEC.withChildFrame())
		if err != nil {
			return nil, ec, err
		}
		return e.indexInto(recvVal, idxVal), recvEC, nil

	case *ast.Filter:
		recvVal, recvEC, err := e.evalChain(goCtx, n.Receiver, ec)
		if err != nil {
			return nil, ec, err
		}
		var out value.Collection
		for i, el := range value.ToCollection(recvVal) {
			condEC := recvEC.withLambdaScope(el, i, nil, false)
			cv, err := e.Eval(goCtx, n.Condition, condEC)
			if err != nil {
				return nil, ec, err
			}
			if b, known := value.Truthy(cv); known && b {
				out = append(out, el)
			}
		}
		return out, recvEC, nil

	case *ast.MethodCall:
		recvVal, recvEC, err := e.evalChain(goCtx, n.Receiver, ec)
		if err != nil {
			return nil, ec, err
		}
		callEC := recvEC.withInput(recvVal)
		v, err := e.evalCall(goCtx, n.Name, n.Args, callEC, n.Span())
		return v, callEC, err

	case *ast.FunctionCall:
		v, err := e.evalCall(goCtx, n.Name, n.Args, ec, n.Span())
		return v, ec, err

	case *ast.Binary:
		v, err := e.evalBinary(goCtx, n, ec)
		return v, ec, err

	case *ast.Union:
		l, err := e.Eval(goCtx, n.Left, ec.withChildFrame())
		if err != nil {
			return nil, ec, err
		}
		r, err := e.Eval(goCtx, n.Right, ec.withChildFrame())
		if err != nil {
			return nil, ec, err
		}
		v, err := e.invokeOperator(goCtx, ec, "|", l, r, n.Span())
		return v, ec, err

	case *ast.Unary:
		v, err := e.evalUnary(goCtx, n, ec)
		return v, ec, err

	case *ast.TypeCheck:
		v, err := e.evalTypeCheck(goCtx, n, ec)
		return v, ec, err

	case *ast.TypeCast:
		v, err := e.evalTypeCast(goCtx, n, ec)
		return v, ec, err

	case *ast.Lambda:
		lambdaEC := ec
		if n.Param != "" {
			lambdaEC = ec.withChildFrame()
			if this, ok := ec.Variable("this"); ok {
				lambdaEC.env.define(n.Param, this)
			}
		}
		v, err := e.Eval(goCtx, n.Body, lambdaEC)
		return v, ec, err

	default:
		return nil, ec, fmt.Errorf("eval: unhandled AST node %T", node)
	}
}

// evalIdentifier implements spec.md's MemberInvocationContext rule, grounded
// on the teacher's evalInvocation: try property/field access first; if that
// comes back empty, check whether the bare name instead names a type
// compatible with the current input (the root-resource-name idiom, e.g.
// `Patient.name` where the expression's very first segment is the resource
// type itself rather than a field of some enclosing object).
func (e *Evaluator) evalIdentifier(n *ast.Identifier, ec Context) (value.Value, error) {
	direct := e.property(ec, ec.Input(), n.Name)
	if len(direct) > 0 {
		return direct, nil
	}
	for _, v := range value.ToCollection(ec.Input()) {
		res, ok := value.Unwrap(v).(value.Resource)
		if !ok {
			continue
		}
		if res.Info.Name == n.Name {
			return value.Of(v), nil
		}
		if p := ec.Provider(); p != nil && p.IsSubtypeOf(res.Info.Name, n.Name) {
			return value.Of(v), nil
		}
	}
	return value.Empty(), nil
}

// property reads name off every item of recv, consulting the Model Provider
// for polymorphic (value[x]-style choice) resolution when available and
// otherwise falling back to the Resource's own structural heuristics —
// "the core MUST tolerate a provider that returns None liberally."
func (e *Evaluator) property(ec Context, recv value.Value, name string) value.Collection {
	var out value.Collection
	for _, v := range value.ToCollection(recv) {
		out = append(out, e.propertyOne(ec, v, name)...)
	}
	return out
}

func (e *Evaluator) propertyOne(ec Context, v value.Value, name string) value.Collection {
	res, ok := value.Unwrap(v).(value.Resource)
	if !ok {
		return value.Empty()
	}
	provider := ec.Provider()
	if provider != nil {
		if refl, ok := provider.ReflectType(res.Info.Name); ok {
			if el, ok := findElement(refl.Elements, name); ok {
				if el.Polymorphic {
					field, typeName, ok := res.ResolveChoice(name, el.TypeNames)
					if !ok {
						return value.Empty()
					}
					return res.PropertyValue(field, typeName)
				}
				typeHint := ""
				if len(el.TypeNames) == 1 {
					typeHint = el.TypeNames[0]
				}
				return res.PropertyValue(name, typeHint)
			}
		}
	}
	return res.PropertyValue(name, "")
}

func findElement(elements []model.Element, name string) (model.Element, bool) {
	for _, el := range elements {
		if el.Name == name {
			return el, true
		}
	}
	return model.Element{}, false
}

func (e *Evaluator) indexInto(recv, idxVal value.Value) value.Value {
	c := value.ToCollection(recv)
	iv, ok := singleValue(value.ToCollection(idxVal))
	if !ok {
		return value.Empty()
	}
	n, ok := value.Unwrap(iv).(value.Integer)
	if !ok {
		return value.Empty()
	}
	i := int(n)
	if i < 0 || i >= len(c) {
		return value.Empty()
	}
	return value.Of(c[i])
}

func (e *Evaluator) evalUnary(goCtx context.Context, n *ast.Unary, ec Context) (value.Value, error) {
	v, err := e.Eval(goCtx, n.Operand, ec.withChildFrame())
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.UnaryPlus:
		return v, nil
	case ast.UnaryMinus:
		return e.invokeNamed(goCtx, ec, "unary-", []registry.Arg{{Value: v}}, n.Span())
	default: // UnaryNot
		return e.invokeNamed(goCtx, ec, "not", []registry.Arg{{Value: v}}, n.Span())
	}
}

// evalBinary implements and/or short-circuiting per spec.md 4.5 ("skip RHS
// if LHS alone determines the result"): ops.tri (the registry's Kleene-logic
// type) is unexported, so rather than reconstructing it here, a decisive
// Boolean LHS returns immediately without evaluating the right operand at
// all; otherwise both sides are evaluated and handed to the registry's
// opAnd/opOr, which implement the full three-valued truth table for the
// case neither side alone decides it.
func (e *Evaluator) evalBinary(goCtx context.Context, n *ast.Binary, ec Context) (value.Value, error) {
	leftVal, err := e.Eval(goCtx, n.Left, ec.withChildFrame())
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.OpAnd:
		if b, known := value.Truthy(leftVal); known && !b {
			return value.Of(value.Boolean(false)), nil
		}
	case ast.OpOr:
		if b, known := value.Truthy(leftVal); known && b {
			return value.Of(value.Boolean(true)), nil
		}
	}
	rightVal, err := e.Eval(goCtx, n.Right, ec.withChildFrame())
	if err != nil {
		return nil, err
	}
	return e.invokeOperator(goCtx, ec, n.Op.Symbol(), leftVal, rightVal, n.Span())
}

func (e *Evaluator) invokeOperator(goCtx context.Context, ec Context, symbol string, l, r value.Value, span ast.Span) (value.Value, error) {
	return e.invokeNamed(goCtx, ec, registry.OperatorKey(symbol), []registry.Arg{{Value: l}, {Value: r}}, span)
}

func (e *Evaluator) invokeNamed(goCtx context.Context, ec Context, name string, args []registry.Arg, span ast.Span) (value.Value, error) {
	op, ok := e.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("eval: no operation registered for %q", name)
	}
	return e.invoke(goCtx, op, ec, args, span, name)
}

func (e *Evaluator) evalTypeCheck(goCtx context.Context, n *ast.TypeCheck, ec Context) (value.Value, error) {
	v, err := e.Eval(goCtx, n.Expr, ec.withChildFrame())
	if err != nil {
		return nil, err
	}
	c := value.ToCollection(v)
	switch len(c) {
	case 0:
		return value.Empty(), nil
	case 1:
		return value.Of(value.Boolean(ops.IsA(ec.Provider(), c[0], n.Target))), nil
	default:
		return nil, e.diagErr(diag.EInvalidCardinality, n.Span(), "is", "is requires a singleton operand")
	}
}

func (e *Evaluator) evalTypeCast(goCtx context.Context, n *ast.TypeCast, ec Context) (value.Value, error) {
	v, err := e.Eval(goCtx, n.Expr, ec.withChildFrame())
	if err != nil {
		return nil, err
	}
	c := value.ToCollection(v)
	switch len(c) {
	case 0:
		return value.Empty(), nil
	case 1:
		if ops.IsA(ec.Provider(), c[0], n.Target) {
			return value.Of(c[0]), nil
		}
		return value.Empty(), nil
	default:
		return nil, e.diagErr(diag.EInvalidCardinality, n.Span(), "as", "as requires a singleton operand")
	}
}

// evalCall is the shared implementation behind MethodCall and FunctionCall:
// look up the operation, validate arity, special-case defineVariable (whose
// effect is a Context mutation rather than a pure function of its
// arguments), then evaluate each non-lambda argument eagerly (in an
// isolated child scope) and defer each lambda-position argument as a
// lambdaArg, before dispatching through the registry.
func (e *Evaluator) evalCall(goCtx context.Context, name string, argNodes []ast.Node, ec Context, span ast.Span) (value.Value, error) {
	op, ok := e.Registry.Lookup(name)
	if !ok {
		return nil, e.diagErr(diag.EFunctionNotFound, span, name, fmt.Sprintf("function %q is not defined", name))
	}
	meta := op.Metadata()
	if err := registry.ValidateArity(meta, len(argNodes)); err != nil {
		return nil, e.diagErr(diag.EInvalidArity, span, name, err.Error())
	}
	if name == "defineVariable" {
		return e.evalDefineVariable(goCtx, argNodes, ec)
	}
	args := make([]registry.Arg, len(argNodes))
	for i, an := range argNodes {
		if meta.IsLambdaArg(i) {
			args[i] = registry.Arg{Lambda: &lambdaArg{ev: e, body: an, base: ec}}
			continue
		}
		v, err := e.Eval(goCtx, an, ec.withChildFrame())
		if err != nil {
			return nil, err
		}
		args[i] = registry.Arg{Value: v}
	}
	return e.invoke(goCtx, op, ec, args, span, name)
}

// evalDefineVariable is the one deliberate exception to Context's
// immutability contract (see Context's doc comment): it binds name in ec's
// shared env frame directly rather than going through the registry, so the
// binding is visible to whatever evalChain threads ec forward into next.
func (e *Evaluator) evalDefineVariable(goCtx context.Context, argNodes []ast.Node, ec Context) (value.Value, error) {
	if len(argNodes) == 0 {
		return ec.Input(), nil
	}
	childEC := ec.withChildFrame()
	nameVal, err := e.Eval(goCtx, argNodes[0], childEC)
	if err != nil {
		return nil, err
	}
	name, ok := singleString(nameVal)
	if !ok {
		return ec.Input(), nil
	}
	bound := ec.Input()
	if len(argNodes) > 1 {
		bound, err = e.Eval(goCtx, argNodes[1], childEC)
		if err != nil {
			return nil, err
		}
	}
	ec.env.define(name, bound)
	return ec.Input(), nil
}

func (e *Evaluator) invoke(goCtx context.Context, op registry.Operation, ec Context, args []registry.Arg, span ast.Span, name string) (value.Value, error) {
	if sop, ok := op.(registry.SyncOp); ok {
		v, handled, err := sop.CallSync(goCtx, ec, args)
		if handled {
			return e.liftOpError(v, err, span, name)
		}
	}
	if aop, ok := op.(registry.AsyncOp); ok {
		v, err := aop.CallAsync(goCtx, ec, args)
		return e.liftOpError(v, err, span, name)
	}
	return nil, fmt.Errorf("eval: operation %q declares neither a sync nor async implementation", name)
}

func (e *Evaluator) liftOpError(v value.Value, err error, span ast.Span, name string) (value.Value, error) {
	if err == nil {
		return v, nil
	}
	var coded *ops.CodedError
	if errors.As(err, &coded) {
		d := diag.New(coded.Code, diag.Span{Start: span.Start, End: span.End})
		d.Operation = name
		d.Detail = coded.Message
		return nil, d
	}
	return nil, fmt.Errorf("eval: %s: %w", name, err)
}

func (e *Evaluator) diagErr(code diag.Code, span ast.Span, operation, detail string) error {
	d := diag.New(code, diag.Span{Start: span.Start, End: span.End})
	d.Operation = operation
	d.Detail = detail
	return d
}

func singleValue(c value.Collection) (value.Value, bool) {
	if len(c) != 1 {
		return nil, false
	}
	return c[0], true
}

func singleString(v value.Value) (string, bool) {
	sv, ok := singleValue(value.ToCollection(v))
	if !ok {
		return "", false
	}
	s, ok := value.Unwrap(sv).(value.String)
	if !ok {
		return "", false
	}
	return string(s), true
}

// lambdaArg is eval's implementation of registry.LambdaArg: a deferred AST
// plus the base Context it closes over, evaluated once per element against
// a fresh withLambdaScope derivation.
type lambdaArg struct {
	ev   *Evaluator
	body ast.Node
	base Context
}

func (l *lambdaArg) Eval(goCtx context.Context, element value.Value, index int, total value.Value) (value.Value, error) {
	child := l.base.withLambdaScope(element, index, total, total != nil)
	return l.ev.Eval(goCtx, l.body, child)
}
