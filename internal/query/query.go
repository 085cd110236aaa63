// Package query narrows a document to the part that should be typed,
// using jq expressions.
package query

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"

	"github.com/itchyny/gojq"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
)

// ErrNotSingleResult is returned when an expression yields zero or several
// values.
var ErrNotSingleResult = stderrors.New("expression must produce exactly one value")

// Selector is a compiled jq expression.
type Selector struct {
	expression string
	value      *gojq.Code
	path       *gojq.Code
}

// Compile parses and compiles expression. Expressions that are also valid
// inside path(...) are evaluated as paths so that object key order
// survives.
func Compile(expression string) (*Selector, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if stderrors.As(err, &parseErr) {
			return nil, errors.NewQueryError(fmt.Sprintf("invalid jq expression at position %d", parseErr.Offset), err)
		}
		return nil, errors.NewQueryError("invalid jq expression", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, errors.NewQueryError("failed to compile jq expression", err)
	}

	s := &Selector{expression: expression, value: code}
	if pathQuery, err := gojq.Parse("path(" + expression + ")"); err == nil {
		if pathCode, err := gojq.Compile(pathQuery); err == nil {
			s.path = pathCode
		}
	}
	return s, nil
}

// Select compiles expression and applies it to value.
func Select(expression string, value models.JSONValue) (models.JSONValue, error) {
	s, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return s.Apply(value)
}

// String returns the source expression.
func (s *Selector) String() string { return s.expression }

// Apply evaluates the selector against value.
func (s *Selector) Apply(value models.JSONValue) (models.JSONValue, error) {
	input := toQueryInput(value)

	if s.path != nil {
		paths, err := collect(s.path, input)
		if err == nil {
			if len(paths) != 1 {
				return nil, errors.NewQueryError(
					fmt.Sprintf("%q produced %d values", s.expression, len(paths)), ErrNotSingleResult)
			}
			steps, ok := paths[0].([]any)
			if ok {
				selected, err := walkPath(value, steps)
				if err != nil {
					return nil, errors.NewQueryError(fmt.Sprintf("failed to follow %q", s.expression), err)
				}
				return selected, nil
			}
		} else {
			// Not a path expression, e.g. a constructed object.
			slog.Debug("falling back to value evaluation", "expression", s.expression, "reason", err)
		}
	}

	results, err := collect(s.value, input)
	if err != nil {
		return nil, errors.NewQueryError(fmt.Sprintf("failed to evaluate %q", s.expression), err)
	}
	if len(results) != 1 {
		return nil, errors.NewQueryError(
			fmt.Sprintf("%q produced %d values", s.expression, len(results)), ErrNotSingleResult)
	}
	converted, err := models.FromAny(results[0])
	if err != nil {
		return nil, errors.NewQueryError("unexpected query result", err)
	}
	return converted, nil
}

func collect(code *gojq.Code, input any) ([]any, error) {
	var out []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			var haltErr *gojq.HaltError
			if stderrors.As(err, &haltErr) && haltErr.Value() == nil {
				return out, nil
			}
			return nil, err
		}
		out = append(out, v)
	}
}

// walkPath follows a path as produced by jq's path/1 through the ordered
// document.
func walkPath(value models.JSONValue, steps []any) (models.JSONValue, error) {
	current := value
	for _, step := range steps {
		switch key := step.(type) {
		case string:
			obj, ok := current.(*models.JSONObject)
			if !ok {
				if current == nil {
					return nil, nil
				}
				return nil, fmt.Errorf("cannot index %T with %q", current, key)
			}
			current, _ = obj.Get(key)
		case int, float64:
			arr, ok := current.(models.JSONArray)
			if !ok {
				if current == nil {
					return nil, nil
				}
				return nil, fmt.Errorf("cannot index %T with a number", current)
			}
			idx := toInt(key)
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				current = nil
				continue
			}
			current = arr[idx]
		case map[string]any:
			arr, ok := current.(models.JSONArray)
			if !ok {
				return nil, fmt.Errorf("cannot slice %T", current)
			}
			start, end := sliceBounds(key, len(arr))
			current = append(models.JSONArray{}, arr[start:end]...)
		default:
			return nil, fmt.Errorf("unsupported path step %T", step)
		}
	}
	return current, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(math.Floor(n))
	}
	return 0
}

func sliceBounds(slice map[string]any, length int) (int, int) {
	bound := func(v any, def int) int {
		if v == nil {
			return def
		}
		i := toInt(v)
		if i < 0 {
			i += length
		}
		return min(max(i, 0), length)
	}
	start := bound(slice["start"], 0)
	end := bound(slice["end"], length)
	if end < start {
		end = start
	}
	return start, end
}

// toQueryInput converts the model into the value types gojq operates on.
func toQueryInput(v models.JSONValue) any {
	switch val := v.(type) {
	case models.JSONNumber:
		if val.IsIntegral() {
			if i, err := strconv.Atoi(string(val)); err == nil {
				return i
			}
			if i, ok := new(big.Int).SetString(string(val), 10); ok {
				return i
			}
		}
		f, err := val.Float64()
		if err != nil {
			return string(val)
		}
		return f
	case models.JSONArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = toQueryInput(elem)
		}
		return out
	case *models.JSONObject:
		out := make(map[string]any, val.Len())
		for _, m := range val.Members {
			out[m.Key] = toQueryInput(m.Value)
		}
		return out
	default:
		return val
	}
}
