package eval

import (
	"time"

	"github.com/fhirpath-go/corefhirpath/model"
	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// envFrame is a cons-list scope for defineVariable-bound names, grounded on
// the teacher's withNewEnvStackFrame/getFunctionScope pattern in
// fhirpath/invocation.go: a child frame is pushed per function-argument
// evaluation and per lambda-body invocation, so a variable defined inside
// one argument or one element's lambda body never leaks to its siblings,
// while a lookup still walks outward to every enclosing frame.
type envFrame struct {
	parent *envFrame
	vars   map[string]value.Value
}

func newEnvFrame(parent *envFrame) *envFrame {
	return &envFrame{parent: parent}
}

func (f *envFrame) define(name string, v value.Value) {
	if f.vars == nil {
		f.vars = make(map[string]value.Value)
	}
	f.vars[name] = v
}

func (f *envFrame) lookup(name string) (value.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Context is the evaluator's implementation of registry.Context, and the
// concrete type package eval threads through every Eval call. Per spec.md
// section 3 ("The context is immutable per call; child contexts are derived
// by structural substitution... never mutation"), every field but env is
// substituted wholesale by the with* derivation helpers below; env is a
// deliberate, documented exception (see evalDefineVariable) carried as a
// shared pointer so defineVariable's binding is visible to the rest of the
// navigation chain it was called from.
type Context struct {
	input value.Value
	root  value.Value
	env   *envFrame

	this     value.Value
	hasThis  bool
	index    int
	hasIndex bool
	total    value.Value
	hasTotal bool

	provider    model.Provider
	tracer      registry.Tracer
	now         time.Time
	envResolver func(name string) (value.Value, bool)
}

// Option configures a Context built by NewContext.
type Option func(*Context)

// WithProvider installs the Model Provider capability (spec component C2).
func WithProvider(p model.Provider) Option {
	return func(c *Context) { c.provider = p }
}

// WithTracer installs the trace() sink.
func WithTracer(t registry.Tracer) Option {
	return func(c *Context) { c.tracer = t }
}

// WithNow fixes the instant now()/today()/timeOfDay() observe, overriding
// the default of time.Now() captured at NewContext time.
func WithNow(t time.Time) Option {
	return func(c *Context) { c.now = t }
}

// WithVariable seeds a %-prefixed (or bare) variable binding visible for
// the whole evaluation, e.g. %issues or a host-supplied %resource override.
func WithVariable(name string, v value.Value) Option {
	return func(c *Context) { c.env.define(name, v) }
}

// WithEnvResolver installs a resolver for %-prefixed variables the seeded
// variable map doesn't answer; it is consulted before the built-in table
// (model.ResolveEnvVar) — the seam spec.md names for %vs-*/%ext-*/host-defined names.
func WithEnvResolver(f func(name string) (value.Value, bool)) Option {
	return func(c *Context) { c.envResolver = f }
}

// NewContext builds the root evaluation context for a single evaluate()
// call: input and root start out identical, now is fixed once so repeated
// now()/today() calls within the evaluation agree, per spec.md section 5.
func NewContext(input value.Value, opts ...Option) Context {
	c := Context{
		input: input,
		root:  input,
		env:   newEnvFrame(nil),
		now:   time.Now(),
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c Context) Input() value.Value       { return c.input }
func (c Context) Root() value.Value        { return c.root }
func (c Context) Provider() model.Provider { return c.provider }
func (c Context) Now() time.Time           { return c.now }
func (c Context) Tracer() registry.Tracer  { return c.tracer }

// Variable resolves $this/$index/$total, %context/%resource/%rootResource,
// defineVariable-bound names (walking the env chain outward), then falls
// through to a host-supplied resolver and finally the built-in
// model.ResolveEnvVar table. Unknown names report ok=false, which eval
// folds to Empty per spec.md 4.6 ("Unknown variables yield Empty").
func (c Context) Variable(name string) (value.Value, bool) {
	switch name {
	case "this":
		if c.hasThis {
			return c.this, true
		}
		return c.input, true
	case "index":
		if c.hasIndex {
			return value.Of(value.Integer(c.index)), true
		}
		return nil, false
	case "total":
		if c.hasTotal {
			return c.total, true
		}
		return nil, false
	case "context", "resource", "rootResource":
		return c.root, true
	}
	if v, ok := c.env.lookup(name); ok {
		return v, true
	}
	if c.envResolver != nil {
		if v, ok := c.envResolver(name); ok {
			return v, true
		}
	}
	if uri, ok := model.ResolveEnvVar(name); ok {
		return value.Of(value.String(uri)), true
	}
	return nil, false
}

// withInput substitutes the current input, e.g. after evaluating a
// MethodCall/PropertyAccess receiver.
func (c Context) withInput(v value.Value) Context {
	nc := c
	nc.input = v
	return nc
}

// withChildFrame pushes an isolated defineVariable scope without touching
// this/index/total, used for function-argument evaluation so a
// defineVariable inside one argument never leaks to sibling arguments.
func (c Context) withChildFrame() Context {
	nc := c
	nc.env = newEnvFrame(c.env)
	return nc
}

// withLambdaScope derives the per-element context a lambda body evaluates
// in: input and $this both become element, $index is set, $total is set
// only for aggregate (hasTotal), and a fresh child frame isolates any
// defineVariable the lambda body performs to that one element's evaluation.
func (c Context) withLambdaScope(element value.Value, index int, total value.Value, hasTotal bool) Context {
	nc := c
	nc.input = element
	nc.this = element
	nc.hasThis = true
	nc.index = index
	nc.hasIndex = true
	if hasTotal {
		nc.total = total
		nc.hasTotal = true
	}
	nc.env = newEnvFrame(c.env)
	return nc
}
