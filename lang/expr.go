package lang

import (
	"cmp"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine is the default [Engine]. Expressions use the expr-lang
// language (github.com/expr-lang/expr). Statements form a small language of
// their own; a trailing colon is accepted and ignored:
//
//	if EXPR
//	elif EXPR            (also: else if EXPR)
//	else
//	unless EXPR
//	for NAME in EXPR
//	for KEY, VALUE in EXPR
//	with NAME = EXPR     (also: let NAME = EXPR)
//
// for iterates slices and arrays, maps in sorted key order, integers n as
// 0..n-1 and strings by character. The single-name form binds elements of
// sequences and keys of maps. A loop that runs zero times is skipped, so an
// else may follow it.
//
// Compiled expressions and parsed statements are cached by source text.
type ExprEngine struct {
	programs   sync.Map // string → *vm.Program
	statements sync.Map // string → *statement
	options    []expr.Option
}

// NewExprEngine returns an ExprEngine with the template builtins installed.
func NewExprEngine() *ExprEngine {
	e := &ExprEngine{}

	for _, b := range builtins {
		e.options = append(e.options, expr.Function(b.name, b.fn))
	}

	return e
}

// Evaluate implements [Engine].
func (e *ExprEngine) Evaluate(src string, scope Scope) (any, error) {
	prog, err := e.compile(src)
	if err != nil {
		return nil, err
	}

	if scope == nil {
		scope = Scope{}
	}

	return expr.Run(prog, map[string]any(scope))
}

// Execute implements [Engine].
func (e *ExprEngine) Execute(src string, scope Scope, prev Outcome, body Body) (Outcome, error) {
	st, err := e.statement(src)
	if err != nil {
		return OutcomeNone, err
	}

	switch st.kind {
	case stmtIf, stmtUnless:
		ok, err := e.test(st.expr, scope)
		if err != nil {
			return OutcomeNone, err
		}

		return branch(ok != (st.kind == stmtUnless), scope, body)

	case stmtElif, stmtElse:
		switch prev {
		case OutcomeNone:
			return OutcomeNone, ErrStatement.With(
				slog.String("statement", src),
				slog.String("reason", st.kind.String()+" without a preceding statement"),
			)
		case OutcomeTaken:
			return OutcomeTaken, nil
		}

		ok := true
		if st.kind == stmtElif {
			if ok, err = e.test(st.expr, scope); err != nil {
				return OutcomeNone, err
			}
		}

		return branch(ok, scope, body)

	case stmtFor:
		return e.loop(st, scope, body)

	case stmtWith:
		v, err := e.Evaluate(st.expr, scope)
		if err != nil {
			return OutcomeNone, err
		}

		return OutcomeTaken, body(scope.With(st.key, v))
	}

	return OutcomeNone, ErrStatement.With(slog.String("statement", src))
}

func branch(ok bool, scope Scope, body Body) (Outcome, error) {
	if !ok {
		return OutcomeSkipped, nil
	}

	return OutcomeTaken, body(scope)
}

func (e *ExprEngine) test(src string, scope Scope) (bool, error) {
	v, err := e.Evaluate(src, scope)
	if err != nil {
		return false, err
	}

	return Truthy(v), nil
}

func (e *ExprEngine) loop(st *statement, scope Scope, body Body) (Outcome, error) {
	seq, err := e.Evaluate(st.expr, scope)
	if err != nil {
		return OutcomeNone, err
	}

	// One scope is reused across iterations; bodies render synchronously
	// and never retain it.
	inner := scope.With(st.key, nil)
	n := 0

	err = iterate(seq, func(k, v, elem any) error {
		n++

		if st.value == "" {
			inner[st.key] = elem
		} else {
			inner[st.key], inner[st.value] = k, v
		}

		return body(inner)
	})
	if err != nil {
		return OutcomeNone, err
	}

	if n == 0 {
		return OutcomeSkipped, nil
	}

	return OutcomeTaken, nil
}

// iterate calls fn for each element of v with the element's key, its value
// and the value a single loop variable binds (the value for sequences, the
// key for maps).
func iterate(v any, fn func(k, v, elem any) error) error {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			e := rv.Index(i).Interface()
			if err := fn(i, e, e); err != nil {
				return err
			}
		}

	case reflect.Map:
		keys := rv.MapKeys()
		slices.SortFunc(keys, compareKeys)

		for _, k := range keys {
			key := k.Interface()
			if err := fn(key, rv.MapIndex(k).Interface(), key); err != nil {
				return err
			}
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		for i := range int(rv.Int()) {
			if err := fn(i, i, i); err != nil {
				return err
			}
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		for i := range int(rv.Uint()) {
			if err := fn(i, i, i); err != nil {
				return err
			}
		}

	case reflect.String:
		i := 0
		for _, r := range rv.String() {
			if err := fn(i, string(r), string(r)); err != nil {
				return err
			}

			i++
		}

	default:
		return ErrIterate.With(slog.String("type", fmt.Sprintf("%T", v)))
	}

	return nil
}

func compareKeys(a, b reflect.Value) int {
	switch {
	case a.CanInt() && b.CanInt():
		return cmp.Compare(a.Int(), b.Int())
	case a.CanUint() && b.CanUint():
		return cmp.Compare(a.Uint(), b.Uint())
	case a.CanFloat() && b.CanFloat():
		return cmp.Compare(a.Float(), b.Float())
	default:
		return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	}
}

func (e *ExprEngine) compile(src string) (*vm.Program, error) {
	if p, ok := e.programs.Load(src); ok {
		return p.(*vm.Program), nil
	}

	prog, err := expr.Compile(src, e.options...)
	if err != nil {
		return nil, err
	}

	p, _ := e.programs.LoadOrStore(src, prog)

	return p.(*vm.Program), nil
}

type stmtKind int

const (
	stmtIf stmtKind = iota
	stmtElif
	stmtElse
	stmtUnless
	stmtFor
	stmtWith
)

func (k stmtKind) String() string {
	return [...]string{"if", "elif", "else", "unless", "for", "with"}[k]
}

type statement struct {
	kind       stmtKind
	expr       string
	key, value string
}

var (
	condPattern = regexp.MustCompile(`^(if|elif|else\s+if|unless)\s+(.+)$`)
	forPattern  = regexp.MustCompile(`^for\s+([A-Za-z_]\w*)(?:\s*,\s*([A-Za-z_]\w*))?\s+in\s+(.+)$`)
	withPattern = regexp.MustCompile(`^(?:with|let)\s+([A-Za-z_]\w*)\s*=\s*(.+)$`)
)

func (e *ExprEngine) statement(src string) (*statement, error) {
	if st, ok := e.statements.Load(src); ok {
		return st.(*statement), nil
	}

	st, err := parseStatement(src)
	if err != nil {
		return nil, err
	}

	e.statements.Store(src, st)

	return st, nil
}

func parseStatement(src string) (*statement, error) {
	s := strings.TrimSpace(src)
	s = strings.TrimSpace(strings.TrimSuffix(s, ":"))

	if s == "else" {
		return &statement{kind: stmtElse}, nil
	}

	if m := condPattern.FindStringSubmatch(s); m != nil {
		kind := stmtIf

		switch strings.Join(strings.Fields(m[1]), " ") {
		case "elif", "else if":
			kind = stmtElif
		case "unless":
			kind = stmtUnless
		}

		return &statement{kind: kind, expr: m[2]}, nil
	}

	if m := forPattern.FindStringSubmatch(s); m != nil {
		return &statement{kind: stmtFor, key: m[1], value: m[2], expr: m[3]}, nil
	}

	if m := withPattern.FindStringSubmatch(s); m != nil {
		return &statement{kind: stmtWith, key: m[1], expr: m[2]}, nil
	}

	return nil, ErrStatement.With(
		slog.String("statement", src),
		slog.String("reason", "unsupported statement"),
	)
}
