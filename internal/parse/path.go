package parse

import "github.com/fhirpath-go/corefhirpath/ast"

// collapsePaths rewrites a freshly parsed tree bottom-up, folding any run of
// two or more consecutive plain ast.PropertyAccess nodes into a single
// ast.Path, per ast.Path's doc comment: a purely cosmetic flattening with no
// semantic difference from the nested form.
func collapsePaths(n ast.Node) ast.Node {
	switch t := n.(type) {
	case *ast.PropertyAccess:
		recv := collapsePaths(t.Receiver)
		if base, segs, ok := asPath(recv); ok {
			return ast.NewPath(ast.Span{Start: base.Span().Start, End: t.Span().End}, base, append(append([]string{}, segs...), t.Name))
		}
		return ast.NewPropertyAccess(t.Span(), recv, t.Name)
	case *ast.MethodCall:
		recv := collapsePaths(t.Receiver)
		args := collapseList(t.Args)
		return ast.NewMethodCall(t.Span(), recv, t.Name, args)
	case *ast.FunctionCall:
		return ast.NewFunctionCall(t.Span(), t.Name, collapseList(t.Args))
	case *ast.IndexAccess:
		return ast.NewIndexAccess(t.Span(), collapsePaths(t.Receiver), collapsePaths(t.Index))
	case *ast.Filter:
		return ast.NewFilter(t.Span(), collapsePaths(t.Receiver), collapsePaths(t.Condition))
	case *ast.Binary:
		return ast.NewBinary(t.Span(), t.Op, collapsePaths(t.Left), collapsePaths(t.Right))
	case *ast.Union:
		return ast.NewUnion(t.Span(), collapsePaths(t.Left), collapsePaths(t.Right))
	case *ast.Unary:
		return ast.NewUnary(t.Span(), t.Op, collapsePaths(t.Operand))
	case *ast.CollectionLiteral:
		return ast.NewCollectionLiteral(t.Span(), collapseList(t.Elements))
	case *ast.Parenthesized:
		return ast.NewParenthesized(t.Span(), collapsePaths(t.Inner))
	case *ast.TypeCast:
		return ast.NewTypeCast(t.Span(), collapsePaths(t.Expr), t.Target)
	case *ast.TypeCheck:
		return ast.NewTypeCheck(t.Span(), collapsePaths(t.Expr), t.Target)
	case *ast.Lambda:
		return ast.NewLambda(t.Span(), t.Param, collapsePaths(t.Body))
	default:
		return n
	}
}

func collapseList(nodes []ast.Node) []ast.Node {
	if nodes == nil {
		return nil
	}
	out := make([]ast.Node, len(nodes))
	for i, n := range nodes {
		out[i] = collapsePaths(n)
	}
	return out
}

// asPath recognizes both an already-collapsed Path and a plain
// PropertyAccess as "something collapsePaths can extend with one more
// segment", so a two-level chain collapses on its very first merge.
func asPath(n ast.Node) (base ast.Node, segs []string, ok bool) {
	switch t := n.(type) {
	case *ast.Path:
		return t.Base, t.Segments, true
	case *ast.PropertyAccess:
		return t.Receiver, []string{t.Name}, true
	default:
		return nil, nil, false
	}
}
