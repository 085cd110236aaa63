package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// JSONValue is a generic type to represent any JSON value.
// It holds one of: nil, bool, JSONNumber, string, JSONArray or *JSONObject.
type JSONValue interface{}

// JSONNumber is a JSON number kept as its literal text so that the
// integral/fractional distinction survives decoding.
type JSONNumber string

// IsIntegral reports whether the literal is written without a fraction or
// exponent. "1" is integral, "1.0" and "1e3" are not.
func (n JSONNumber) IsIntegral() bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// String returns the literal text.
func (n JSONNumber) String() string { return string(n) }

// Float64 returns the number as a float64.
func (n JSONNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int64 returns the number as an int64.
func (n JSONNumber) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray []JSONValue

// Member is a single key/value pair of a JSON object.
type Member struct {
	Key   string
	Value JSONValue
}

// JSONObject represents a JSON object. Members keep the order in which
// their keys were first seen.
type JSONObject struct {
	Members []Member
}

// NewJSONObject builds an object from members, applying Set semantics
// for repeated keys.
func NewJSONObject(members ...Member) *JSONObject {
	obj := &JSONObject{Members: make([]Member, 0, len(members))}
	for _, m := range members {
		obj.Set(m.Key, m.Value)
	}
	return obj
}

// Set stores value under key. A repeated key keeps its original position
// and takes the new value.
func (o *JSONObject) Set(key string, value JSONValue) {
	for i := range o.Members {
		if o.Members[i].Key == key {
			o.Members[i].Value = value
			return
		}
	}
	o.Members = append(o.Members, Member{Key: key, Value: value})
}

// Get returns the value stored under key.
func (o *JSONObject) Get(key string) (JSONValue, bool) {
	for _, m := range o.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Keys returns the object keys in order.
func (o *JSONObject) Keys() []string {
	keys := make([]string, len(o.Members))
	for i, m := range o.Members {
		keys[i] = m.Key
	}
	return keys
}

// Len returns the number of members.
func (o *JSONObject) Len() int { return len(o.Members) }

// IntermediateRepresentation is a structure to hold the parsed JSON data
// in a way that's easy for the analyzer to work with.
type IntermediateRepresentation struct {
	Root         JSONValue
	RootIsArray  bool // True if the root of the document is an array
	RootIsObject bool // True if the root of the document is an object
}

// NewIntermediateRepresentation wraps root and classifies it.
func NewIntermediateRepresentation(root JSONValue) IntermediateRepresentation {
	ir := IntermediateRepresentation{Root: root}
	switch root.(type) {
	case *JSONObject:
		ir.RootIsObject = true
	case JSONArray:
		ir.RootIsArray = true
	}
	return ir
}

// FromAny converts values produced by generic decoders (encoding/json,
// gojq, yaml) into the model. Map keys are sorted because their original
// order is not known.
func FromAny(v any) (JSONValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil
	case JSONNumber:
		return val, nil
	case json.Number:
		return JSONNumber(val), nil
	case float64:
		return FloatLiteral(val, 64), nil
	case float32:
		return FloatLiteral(float64(val), 32), nil
	case *big.Int:
		return JSONNumber(val.String()), nil
	case int:
		return JSONNumber(strconv.Itoa(val)), nil
	case int64:
		return JSONNumber(strconv.FormatInt(val, 10)), nil
	case uint64:
		return JSONNumber(strconv.FormatUint(val, 10)), nil
	case *JSONObject, JSONArray:
		return val, nil
	case []any:
		arr := make(JSONArray, len(val))
		for i, elem := range val {
			converted, err := FromAny(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := &JSONObject{Members: make([]Member, 0, len(keys))}
		for _, k := range keys {
			converted, err := FromAny(val[k])
			if err != nil {
				return nil, err
			}
			obj.Members = append(obj.Members, Member{Key: k, Value: converted})
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a JSON value", v)
	}
}

// FloatLiteral formats f so that it still reads as a fraction: 1.0 must
// not turn into "1".
func FloatLiteral(f float64, bitSize int) JSONNumber {
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return JSONNumber(s)
}

// ToAny converts a model value into plain Go values (map[string]any,
// []any, json.Number) for libraries that expect them. Key order is lost.
func ToAny(v JSONValue) any {
	switch val := v.(type) {
	case JSONNumber:
		return json.Number(val)
	case JSONArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case *JSONObject:
		out := make(map[string]any, len(val.Members))
		for _, m := range val.Members {
			out[m.Key] = ToAny(m.Value)
		}
		return out
	default:
		return val
	}
}
