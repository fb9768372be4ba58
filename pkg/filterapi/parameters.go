package filterapi

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

// ParameterType selects how a supplied value is coerced.
type ParameterType string

// Parameter types and the Go type their validated values have.
const (
	TypeBool              ParameterType = "bool"                // bool
	TypeInt               ParameterType = "int"                 // int64
	TypeFloat             ParameterType = "float"               // float64
	TypeString            ParameterType = "string"              // string
	TypeChoice            ParameterType = "choice"              // int index into Choices
	TypeDataPath          ParameterType = "data_path"           // datagraph.Path of an existing object
	TypeArrayCreationPath ParameterType = "array_creation_path" // datagraph.Path of an object to create
	TypeNumericVector     ParameterType = "numeric_vector"      // []float64
	TypeDataType          ParameterType = "data_type"           // datastore.DataType
	TypeShape             ParameterType = "shape"               // datastore.Shape
)

// Parameter declares one argument a filter accepts.
type Parameter struct {
	Key         string
	Name        string
	Description string
	Type        ParameterType
	Required    bool
	// Default is coerced like a supplied value when the key is absent.
	Default any
	// Choices lists the option labels of a TypeChoice parameter.
	Choices []string
	// VectorLen fixes the length of a TypeNumericVector; 0 accepts any.
	VectorLen int
}

// link makes Key active only while Controller holds Value.
type link struct {
	Key        string
	Controller string
	Value      any
}

// Parameters is the ordered declaration list of a filter.
type Parameters struct {
	defs  []Parameter
	links []link
}

// Add appends a declaration.
func (p *Parameters) Add(def Parameter) *Parameters {
	p.defs = append(p.defs, def)
	return p
}

// Link makes key active only while controller's validated value equals
// value. Several links on the same key are alternatives. Inactive
// parameters are neither required nor validated.
func (p *Parameters) Link(controller string, value any, key string) *Parameters {
	p.links = append(p.links, link{Key: key, Controller: controller, Value: value})
	return p
}

// Definitions returns a copy of the declarations.
func (p Parameters) Definitions() []Parameter {
	out := make([]Parameter, len(p.defs))
	copy(out, p.defs)
	return out
}

// Lookup finds a declaration by key.
func (p Parameters) Lookup(key string) (Parameter, bool) {
	for _, def := range p.defs {
		if def.Key == key {
			return def, true
		}
	}
	return Parameter{}, false
}

// Validate evaluates linkage, applies defaults and coerces every active
// argument. Every problem is reported; the returned bag holds only the
// active, valid values in declaration order.
func (p Parameters) Validate(args *Arguments) (*Arguments, Result) {
	var res Result
	values := make(map[string]any, len(p.defs))
	coerceErrs := make(map[string]error)
	for _, def := range p.defs {
		raw, ok := args.Get(def.Key)
		if !ok {
			if def.Default == nil {
				continue
			}
			raw = def.Default
		}
		v, err := coerce(def, raw)
		if err != nil {
			coerceErrs[def.Key] = err
			continue
		}
		values[def.Key] = v
	}

	active := p.activeSet(values)
	cleaned := NewArguments()
	for _, def := range p.defs {
		if !active[def.Key] {
			continue
		}
		if err, bad := coerceErrs[def.Key]; bad {
			res.Errorf(CodeInvalidArgument, "parameter %s: %v", def.Key, err)
			continue
		}
		v, ok := values[def.Key]
		if !ok {
			if def.Required {
				res.Errorf(CodeMissingArgument, "parameter %s: required parameter missing", def.Key)
			}
			continue
		}
		cleaned.Set(def.Key, v)
	}
	for _, key := range args.Keys() {
		if _, declared := p.Lookup(key); !declared {
			res.Warnf(CodeUndeclaredArgument, "parameter %s: not declared, ignored", key)
		}
	}
	return cleaned, res
}

// Active reports which declared keys are active for args.
func (p Parameters) Active(args *Arguments) map[string]bool {
	values := make(map[string]any, len(p.defs))
	for _, def := range p.defs {
		raw, ok := args.Get(def.Key)
		if !ok {
			raw = def.Default
		}
		if raw == nil {
			continue
		}
		if v, err := coerce(def, raw); err == nil {
			values[def.Key] = v
		}
	}
	return p.activeSet(values)
}

func (p Parameters) activeSet(values map[string]any) map[string]bool {
	memo := make(map[string]bool, len(p.defs))
	visiting := make(map[string]bool)
	var isActive func(key string) bool
	isActive = func(key string) bool {
		if v, ok := memo[key]; ok {
			return v
		}
		if visiting[key] {
			// cyclic links never activate
			return false
		}
		visiting[key] = true
		defer delete(visiting, key)

		linked := false
		result := false
		for _, l := range p.links {
			if l.Key != key {
				continue
			}
			linked = true
			if !isActive(l.Controller) {
				continue
			}
			ctrl, ok := p.Lookup(l.Controller)
			if !ok {
				continue
			}
			want, err := coerce(ctrl, l.Value)
			if err != nil {
				continue
			}
			if got, ok := values[l.Controller]; ok && reflect.DeepEqual(got, want) {
				result = true
				break
			}
		}
		if !linked {
			result = true
		}
		memo[key] = result
		return result
	}
	out := make(map[string]bool, len(p.defs))
	for _, def := range p.defs {
		out[def.Key] = isActive(def.Key)
	}
	return out
}

func coerce(def Parameter, raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("value cannot be null")
	}
	switch def.Type {
	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expects boolean")
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expects boolean")
	case TypeInt:
		if n, ok := asInt(raw); ok {
			return n, nil
		}
		return nil, fmt.Errorf("expects integer")
	case TypeFloat:
		if f, ok := asFloat(raw); ok {
			return f, nil
		}
		return nil, fmt.Errorf("expects number")
	case TypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
		return nil, fmt.Errorf("expects string")
	case TypeChoice:
		return coerceChoice(def, raw)
	case TypeDataPath, TypeArrayCreationPath:
		return coercePath(raw)
	case TypeNumericVector:
		vec, err := coerceVector(raw)
		if err != nil {
			return nil, err
		}
		if def.VectorLen > 0 && len(vec) != def.VectorLen {
			return nil, fmt.Errorf("expects %d values, got %d", def.VectorLen, len(vec))
		}
		return vec, nil
	case TypeDataType:
		switch v := raw.(type) {
		case datastore.DataType:
			if !v.Valid() {
				return nil, fmt.Errorf("unknown data type %d", v)
			}
			return v, nil
		case string:
			return datastore.ParseDataType(v)
		}
		return nil, fmt.Errorf("expects data type")
	case TypeShape:
		return coerceShape(raw)
	}
	return nil, fmt.Errorf("unsupported parameter type %q", def.Type)
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceChoice(def Parameter, raw any) (any, error) {
	if s, ok := raw.(string); ok {
		for i, c := range def.Choices {
			if c == s {
				return i, nil
			}
		}
		if _, numeric := asInt(s); !numeric {
			return nil, fmt.Errorf("value must be one of: %s", strings.Join(def.Choices, ", "))
		}
	}
	n, ok := asInt(raw)
	if !ok || n < 0 || int(n) >= len(def.Choices) {
		return nil, fmt.Errorf("choice index must be in [0, %d)", len(def.Choices))
	}
	return int(n), nil
}

func coercePath(raw any) (any, error) {
	switch v := raw.(type) {
	case datagraph.Path:
		if len(v) == 0 {
			return nil, fmt.Errorf("expects a non-root path")
		}
		for _, name := range v {
			if err := datagraph.ValidateName(name); err != nil {
				return nil, err
			}
		}
		return datagraph.NewPath(v...), nil
	case []string:
		return coercePath(datagraph.Path(v))
	case string:
		p, err := datagraph.ParsePath(v)
		if err != nil {
			return nil, err
		}
		return coercePath(p)
	}
	return nil, fmt.Errorf("expects data path")
}

func coerceVector(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, nil
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(v))
		for i, item := range v {
			f, ok := asFloat(item)
			if !ok {
				return nil, fmt.Errorf("element %d is not numeric", i)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("expects numeric vector")
}

func coerceShape(raw any) (any, error) {
	var dims []int64
	switch v := raw.(type) {
	case datastore.Shape:
		for _, d := range v {
			dims = append(dims, int64(d))
		}
	case []int:
		for _, d := range v {
			dims = append(dims, int64(d))
		}
	case []any:
		for i, item := range v {
			n, ok := asInt(item)
			if !ok {
				return nil, fmt.Errorf("dimension %d is not an integer", i)
			}
			dims = append(dims, n)
		}
	default:
		return nil, fmt.Errorf("expects shape")
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("shape needs at least one dimension")
	}
	out := make(datastore.Shape, len(dims))
	for i, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("dimension %d is negative", i)
		}
		out[i] = int(d)
	}
	return out, nil
}
