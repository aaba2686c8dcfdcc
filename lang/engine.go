package lang

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"sync"
)

// Scope maps names to values visible to embedded code.
type Scope map[string]any

// With returns a copy of s with name bound to value.
func (s Scope) With(name string, value any) Scope {
	c := make(Scope, len(s)+1)
	maps.Copy(c, s)
	c[name] = value

	return c
}

// Body renders the block nested under a statement with the given scope.
type Body func(Scope) error

// Outcome reports what a statement did with its body. It is passed to the
// next sibling statement so conditional chains (else, elif) can be
// expressed without the compiler knowing the statement language.
type Outcome int

const (
	// OutcomeNone means there is no preceding statement in the chain.
	OutcomeNone Outcome = iota
	// OutcomeTaken means the statement rendered its body.
	OutcomeTaken
	// OutcomeSkipped means the statement declined to render its body.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTaken:
		return "taken"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "none"
	}
}

// Engine evaluates the code embedded in templates.
//
// Evaluate returns the value of an expression. Execute runs a statement,
// calling body zero or more times with the scope the body should see, and
// reports its outcome. prev is the outcome of the immediately preceding
// sibling statement, or OutcomeNone.
//
// Engines must be safe for concurrent use; programs may be rendered from
// several goroutines at once.
type Engine interface {
	Evaluate(expr string, scope Scope) (any, error)
	Execute(stmt string, scope Scope, prev Outcome, body Body) (Outcome, error)
}

var defaultEngine = sync.OnceValue(func() Engine { return NewExprEngine() })

// Stringify converts a value produced by an engine to output text.
// nil becomes the empty string.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Truthy reports whether v counts as true in a condition: nil, false, zero
// numbers and empty strings, slices and maps are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}
