package ops

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/fhirpath-go/corefhirpath/registry"
	"github.com/fhirpath-go/corefhirpath/value"
)

// registerStrings wires the String category from spec.md 4.6. Every entry
// is a method invoked on a String receiver (the implicit input); a receiver
// that is not a singleton String returns Empty per the section's
// empty-propagation default, except where the specification's boundary
// behaviors (substring, indexOf on "") carry a more specific rule.
func registerStrings(reg *registry.Registry) {
	unary := func(name, ret string, call Func) {
		def(reg, registry.Metadata{Name: name, Category: registry.CategoryString, Pure: true, ReturnType: ret}, call)
	}
	withArgs := func(name, ret string, params []registry.Param, call Func) {
		def(reg, registry.Metadata{Name: name, Category: registry.CategoryString, Pure: true, Params: params, ReturnType: ret}, call)
	}
	arg := func(name string) registry.Param { return registry.Param{Name: name, Arity: registry.Required} }
	optArg := func(name string) registry.Param { return registry.Param{Name: name, Arity: registry.Optional} }

	unary("length", "System.Integer", opLength)
	withArgs("substring", "System.String", []registry.Param{arg("start"), optArg("length")}, opSubstring)
	withArgs("startsWith", "System.Boolean", []registry.Param{arg("prefix")}, opStartsWith)
	withArgs("endsWith", "System.Boolean", []registry.Param{arg("suffix")}, opEndsWith)
	withArgs("contains", "System.Boolean", []registry.Param{arg("substring")}, opStringContains)
	withArgs("indexOf", "System.Integer", []registry.Param{arg("substring")}, opIndexOf)
	withArgs("lastIndexOf", "System.Integer", []registry.Param{arg("substring")}, opLastIndexOf)
	withArgs("replace", "System.String", []registry.Param{arg("pattern"), arg("substitution")}, opReplace)
	withArgs("split", "System.String", []registry.Param{arg("separator")}, opSplit)
	withArgs("join", "System.String", []registry.Param{optArg("separator")}, opJoin)
	unary("toChars", "System.String", opToChars)
	unary("upper", "System.String", opUpper)
	unary("lower", "System.String", opLower)
	unary("trim", "System.String", opTrim)
	withArgs("matches", "System.Boolean", []registry.Param{arg("regex")}, opMatches)
	withArgs("replaceMatches", "System.String", []registry.Param{arg("regex"), arg("substitution")}, opReplaceMatches)
	withArgs("encode", "System.String", []registry.Param{arg("format")}, opEncode)
	withArgs("decode", "System.String", []registry.Param{arg("format")}, opDecode)
}

// singleString extracts ectx's current input as a singleton String,
// unwrapping a FHIRPrimitive if it came from a resource.
func singleString(ectx registry.Context) (string, bool) {
	v, ok := single(rawInput(ectx))
	if !ok {
		return "", false
	}
	s, ok := value.Unwrap(v).(value.String)
	return string(s), ok
}

func stringArg(args []registry.Arg, i int) (string, bool) {
	v, ok := single(argCollection(args, i))
	if !ok {
		return "", false
	}
	s, ok := v.(value.String)
	return string(s), ok
}

func opLength(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.Integer(len([]rune(s)))), nil
}

// opSubstring implements the boundary rules from spec.md 4.6/8: negative
// start, start >= length, or negative length all yield Empty; otherwise the
// slice is clipped to the end of the string.
func opSubstring(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	runes := []rune(s)
	start, ok := intArg(args, 0)
	if !ok || start < 0 || start >= len(runes) {
		return value.Empty(), nil
	}
	end := len(runes)
	if len(args) > 1 {
		n, ok := intArg(args, 1)
		if !ok {
			return value.Empty(), nil
		}
		if n < 0 {
			return value.Empty(), nil
		}
		if start+n < end {
			end = start + n
		}
	}
	return value.Of(value.String(string(runes[start:end]))), nil
}

func opStartsWith(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	prefix, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.Boolean(strings.HasPrefix(s, prefix))), nil
}

func opEndsWith(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	suffix, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.Boolean(strings.HasSuffix(s, suffix))), nil
}

func opStringContains(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	sub, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.Boolean(strings.Contains(s, sub))), nil
}

// opIndexOf: indexOf("") returns 0 per spec.md's boundary behaviors, even
// though strings.Index would agree already; called out explicitly because
// lastIndexOf's matching "" case needs the string's own length instead.
func opIndexOf(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	sub, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	idx := strings.Index(s, sub)
	if idx < 0 {
		return value.Of(value.Integer(-1)), nil
	}
	return value.Of(value.Integer(len([]rune(s[:idx])))), nil
}

func opLastIndexOf(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	sub, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	if sub == "" {
		return value.Of(value.Integer(len([]rune(s)))), nil
	}
	idx := strings.LastIndex(s, sub)
	if idx < 0 {
		return value.Of(value.Integer(-1)), nil
	}
	return value.Of(value.Integer(len([]rune(s[:idx])))), nil
}

func opReplace(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	pattern, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	sub, ok := stringArg(args, 1)
	if !ok {
		return value.Empty(), nil
	}
	if pattern == "" {
		return value.Of(value.String(sub + strings.Join(strings.Split(s, ""), sub) + sub)), nil
	}
	return value.Of(value.String(strings.ReplaceAll(s, pattern, sub))), nil
}

func opSplit(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	sep, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	parts := strings.Split(s, sep)
	out := make(value.Collection, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return out, nil
}

func opJoin(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	c := rawInput(ectx)
	sep := ""
	if len(args) > 0 {
		sep, _ = stringArg(args, 0)
	}
	parts := make([]string, 0, len(c))
	for _, v := range c {
		s, ok := value.Unwrap(v).(value.String)
		if !ok {
			return value.Empty(), nil
		}
		parts = append(parts, string(s))
	}
	return value.Of(value.String(strings.Join(parts, sep))), nil
}

func opToChars(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	runes := []rune(s)
	out := make(value.Collection, len(runes))
	for i, r := range runes {
		out[i] = value.String(string(r))
	}
	return out, nil
}

func opUpper(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.String(strings.ToUpper(s))), nil
}

func opLower(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.String(strings.ToLower(s))), nil
}

func opTrim(_ context.Context, ectx registry.Context, _ []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	return value.Of(value.String(strings.TrimSpace(s))), nil
}

func opMatches(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	pattern, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidRegexErr(pattern, err)
	}
	return value.Of(value.Boolean(re.MatchString(s))), nil
}

func opReplaceMatches(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	pattern, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	sub, ok := stringArg(args, 1)
	if !ok {
		return value.Empty(), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidRegexErr(pattern, err)
	}
	return value.Of(value.String(re.ReplaceAllString(s, sub))), nil
}

// opEncode/opDecode support the five format codes named in spec.md 4.6:
// base64, urlbase64, hex, url (percent-encoding), html (named entities).
func opEncode(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	format, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	switch format {
	case "base64":
		return value.Of(value.String(base64.StdEncoding.EncodeToString([]byte(s)))), nil
	case "urlbase64":
		return value.Of(value.String(base64.URLEncoding.EncodeToString([]byte(s)))), nil
	case "hex":
		return value.Of(value.String(hex.EncodeToString([]byte(s)))), nil
	case "url":
		return value.Of(value.String(url.QueryEscape(s))), nil
	case "html":
		return value.Of(value.String(html.EscapeString(s))), nil
	default:
		return value.Empty(), nil
	}
}

func opDecode(_ context.Context, ectx registry.Context, args []registry.Arg) (value.Value, error) {
	s, ok := singleString(ectx)
	if !ok {
		return value.Empty(), nil
	}
	format, ok := stringArg(args, 0)
	if !ok {
		return value.Empty(), nil
	}
	switch format {
	case "base64":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return value.Empty(), nil
		}
		return value.Of(value.String(b)), nil
	case "urlbase64":
		b, err := base64.URLEncoding.DecodeString(s)
		if err != nil {
			return value.Empty(), nil
		}
		return value.Of(value.String(b)), nil
	case "hex":
		b, err := hex.DecodeString(s)
		if err != nil {
			return value.Empty(), nil
		}
		return value.Of(value.String(b)), nil
	case "url":
		out, err := url.QueryUnescape(s)
		if err != nil {
			return value.Empty(), nil
		}
		return value.Of(value.String(out)), nil
	case "html":
		return value.Of(value.String(html.UnescapeString(s))), nil
	default:
		return value.Empty(), nil
	}
}
