/*
NAME
  formula.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package formula evaluates the per-variable unit-conversion expressions
// carried in a model's variables[].formula config field (spec §4.4),
// e.g. "x - 273.15" to convert Kelvin to Celsius. The upstream pipeline
// this is ported from used Python eval() against a raw numpy array;
// here the same per-pixel expression is compiled once with govaluate
// and evaluated against each pixel in turn, with arithmetic and a small
// whitelist of named functions only.
package formula

import (
	"math"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

var allowedFunctions = map[string]govaluate.ExpressionFunction{
	"abs":  func(args ...interface{}) (interface{}, error) { return math.Abs(args[0].(float64)), nil },
	"sqrt": func(args ...interface{}) (interface{}, error) { return math.Sqrt(args[0].(float64)), nil },
	"log":  func(args ...interface{}) (interface{}, error) { return math.Log(args[0].(float64)), nil },
	"exp":  func(args ...interface{}) (interface{}, error) { return math.Exp(args[0].(float64)), nil },
	"min": func(args ...interface{}) (interface{}, error) {
		return math.Min(args[0].(float64), args[1].(float64)), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		return math.Max(args[0].(float64), args[1].(float64)), nil
	},
}

// Compiled is a formula compiled once and reusable across many grids.
type Compiled struct {
	expr *govaluate.EvaluableExpression
}

// Compile parses expr (arithmetic over the identifier x, plus calls to
// abs/sqrt/log/exp/min/max) without evaluating it.
func Compile(expr string) (*Compiled, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, allowedFunctions)
	if err != nil {
		return nil, errors.Wrapf(err, "formula: parsing %q", expr)
	}
	return &Compiled{expr: e}, nil
}

// Eval applies c to every element of data, returning a new slice. NaN
// inputs pass through as NaN without being evaluated, so a no-data
// pixel never needs special-casing in the formula itself.
func (c *Compiled) Eval(data []float32) ([]float32, error) {
	out := make([]float32, len(data))
	params := make(govaluate.MapParameters, 1)
	for i, v := range data {
		if isNaN32(v) {
			out[i] = v
			continue
		}
		params["x"] = float64(v)
		result, err := c.expr.Eval(params)
		if err != nil {
			return nil, errors.Wrapf(err, "formula: evaluating at index %d", i)
		}
		f, ok := result.(float64)
		if !ok {
			return nil, errors.Errorf("formula: result at index %d is %T, not numeric", i, result)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Apply compiles expr and evaluates it against data in one step. Prefer
// Compile+Eval when the same formula is applied to many grids, e.g.
// once per forecast cycle for the lifetime of a model's scheduler.
func Apply(expr string, data []float32) ([]float32, error) {
	c, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return c.Eval(data)
}

func isNaN32(v float32) bool { return v != v }
