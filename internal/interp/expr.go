package interp

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/phobologic/synconf/internal/config"
	"github.com/phobologic/synconf/internal/model"
)

// functions is the library available to expression markers.
func functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"format": stdlib.FormatFunc,
		"int":    stdlib.IntFunc,
		"len":    stdlib.LengthFunc,
		"length": stdlib.LengthFunc,
		"lower":  stdlib.LowerFunc,
		"max":    stdlib.MaxFunc,
		"min":    stdlib.MinFunc,
		"pow":    stdlib.PowFunc,
		"upper":  stdlib.UpperFunc,
	}
}

// expression evaluates marker content holding `backticked` references. The
// content is translated to HCL first and each reference is resolved and bound
// to the variable that replaces it.
func (r *resolution) expression(content, path string) (any, error) {
	src, refs, err := translate(content)
	if err != nil {
		return nil, &ExpressionError{Expression: content, Path: path, Err: err}
	}

	vars := make(map[string]cty.Value, len(refs))
	for i, ref := range refs {
		v, err := r.lookup(ref, path)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			v = config.ParseValue(s)
		}
		cv, err := toCty(v)
		if err != nil {
			return nil, &ExpressionError{Expression: content, Path: path, Err: err}
		}
		vars["ref"+strconv.Itoa(i)] = cv
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), path, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &ExpressionError{Expression: content, Path: path, Diags: diags}
	}
	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: r.functions})
	if diags.HasErrors() {
		return nil, &ExpressionError{Expression: content, Path: path, Diags: diags}
	}
	out, err := fromCty(val)
	if err != nil {
		return nil, &ExpressionError{Expression: content, Path: path, Err: err}
	}
	r.logger.Debug("evaluated expression", "path", path, "expression", content)
	return out, nil
}

// toCty converts a configuration value for use in an expression. Class
// references become their qualified name.
func toCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case uint64:
		return cty.NumberUIntVal(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return cty.NilVal, fmt.Errorf("number %v cannot be used in an expression", x)
		}
		return cty.NumberFloatVal(x), nil
	case string:
		return cty.StringVal(x), nil
	case model.ClassRef:
		return cty.StringVal(x.Name), nil
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, len(x))
		for i, item := range x {
			cv, err := toCty(item)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = cv
		}
		return cty.TupleVal(vals), nil
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, item := range x {
			cv, err := toCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in attribute %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported value of type %T", v)
}

// fromCty converts an expression result back into a configuration value.
// Integral numbers become ints.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, errors.New("result is unknown")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			item, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, ev := it.Element()
			item, err := fromCty(ev)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = item
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported result type %s", ty.FriendlyName())
}
