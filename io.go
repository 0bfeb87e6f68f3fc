/*
Copyright © 2026 the LandEvo authors.
This file is part of LandEvo.

LandEvo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LandEvo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LandEvo.  If not, see <http://www.gnu.org/licenses/>.
*/

package landevo

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"gonum.org/v1/gonum/floats"
)

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved.
//
// outputVariables maps the names of the variables for which data
// should be returned to expressions that define how the requested data
// should be calculated. Expressions can use grid field names, other
// user-defined output variables, and functions.
//
// modelVariables is automatically generated based on the grid fields
// that are required to calculate the requested output variables.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'log(x)' which takes the natural logarithm of x.
//
// 'sqrt(x)' which takes the square root of x.
//
// 'sum(x)' which sums a grid field across all nodes, giving the same
// value at every node.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	scalar := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("landevo: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			switch v := arg[0].(type) {
			case float64:
				return f(v), nil
			case []float64:
				out := make([]float64, len(v))
				for i, vv := range v {
					out[i] = f(vv)
				}
				return out, nil
			default:
				return nil, fmt.Errorf("landevo: invalid argument type %T for function '%s'", arg[0], name)
			}
		}
	}
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp":  scalar("exp", math.Exp),
		"log":  scalar("log", math.Log),
		"sqrt": scalar("sqrt", math.Sqrt),
		"sum": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("landevo: got %d arguments for function 'sum', but needs 1", len(arg))
			}
			v, ok := arg[0].([]float64)
			if !ok {
				return nil, fmt.Errorf("landevo: invalid argument type %T for function 'sum'", arg[0])
			}
			return floats.Sum(v), nil
		},
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}
	err := o.resolveDerivatives()
	return &o, err
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]struct{})
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// varNamePattern matches standalone occurrences of a variable name.
// Grid field names contain double underscores, which \b treats as word
// characters, so 'area' will not match inside 'drainage_area'.
func varNamePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// resolveDerivatives replaces user-defined output variables that
// appear inside other expressions with the expressions that define
// them, and collects the grid fields required to calculate all output
// variables.
func (o *Outputter) resolveDerivatives() error {
	// Substitute until no expression refers to another output
	// variable. The pass bound catches mutually recursive definitions.
	for pass := 0; ; pass++ {
		changed := false
		for key, val := range o.outputVariables {
			for name, def := range o.outputVariables {
				if name == key || name == def {
					continue
				}
				re := varNamePattern(name)
				if re.MatchString(val) {
					val = re.ReplaceAllString(val, "("+def+")")
					changed = true
				}
			}
			o.outputVariables[key] = val
		}
		if !changed {
			break
		}
		if pass > len(o.outputVariables) {
			return fmt.Errorf("landevo: circular definition among output variables")
		}
	}

	o.modelVariables = o.modelVariables[:0]
	for key, val := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return fmt.Errorf("landevo: output variable %s: %v", key, err)
		}
		o.modelVariables = append(o.modelVariables, expression.Vars()...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return nil
}

// checkOutputNames checks (1) if any output variable names exceed 10
// characters and (2) if any output variable names include characters
// that are unsupported in shapefile field names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		long := len(key) > 10
		ok, err := regexp.MatchString(`^[A-Za-z]\w*$`, key)
		if err != nil {
			panic(err)
		}
		if long && !ok {
			return fmt.Errorf("landevo: output variable name '%s' exceeds 10 characters and includes unsupported character(s)", key)
		} else if long {
			return fmt.Errorf("landevo: output variable name '%s' exceeds 10 characters", key)
		} else if !ok {
			return fmt.Errorf("landevo: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated from
// the grid fields that exist when it runs. It is meant to be used as
// an InitFunc so configuration mistakes surface before the simulation
// starts.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *Model) error {
		for _, v := range o.modelVariables {
			if !d.Grid.HasField(v) {
				return fmt.Errorf("landevo: undefined variable name '%s'", v)
			}
		}
		return checkOutputNames(o.outputVariables)
	}
}

// Results calculates the requested output variables, returning one
// value per grid node for each variable.
func (d *Model) Results(o *Outputter) (map[string][]float64, error) {
	n := d.Grid.NumNodes()
	fields := make(map[string][]float64, len(o.modelVariables))
	for _, v := range o.modelVariables {
		f, err := d.Grid.Field(v)
		if err != nil {
			return nil, err
		}
		fields[v] = f
	}

	results := make(map[string][]float64, len(o.outputVariables))
	for key, val := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("landevo: output variable %s: %v", key, err)
		}
		out := make([]float64, n)
		params := make(map[string]interface{}, len(fields))
		for i := 0; i < n; i++ {
			for name, f := range fields {
				params[name] = f[i]
			}
			r, err := expression.Evaluate(params)
			if err != nil {
				// Whole-field functions such as sum need the full
				// slice rather than a per-node scalar.
				for name, f := range fields {
					params[name] = f
				}
				r, err = expression.Evaluate(params)
				if err != nil {
					return nil, fmt.Errorf("landevo: evaluating output variable %s: %v", key, err)
				}
			}
			v, ok := r.(float64)
			if !ok {
				return nil, fmt.Errorf("landevo: output variable %s: expected a number, got %T", key, r)
			}
			out[i] = v
		}
		results[key] = out
	}
	return results, nil
}

// Output returns a function that writes the output variables to a
// shapefile, with one polygon per grid node.
func (o *Outputter) Output() DomainManipulator {
	return func(d *Model) error {
		results, err := d.Results(o)
		if err != nil {
			return err
		}

		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)
		fields := make([]goshp.Field, len(vars))
		for i, v := range vars {
			fields[i] = goshp.FloatField(v, 14, 8)
		}

		// Remove the extension and replace it with .shp.
		fileBase := strings.TrimSuffix(o.fileName, filepath.Ext(o.fileName))
		o.fileName = fileBase + ".shp"
		shape, err := shp.NewEncoderFromFields(o.fileName, goshp.POLYGON, fields...)
		if err != nil {
			return fmt.Errorf("landevo: error creating output shapefile: %v", err)
		}
		for i := 0; i < d.Grid.NumNodes(); i++ {
			outFields := make([]interface{}, len(vars))
			for j, v := range vars {
				outFields[j] = results[v][i]
			}
			if err := shape.EncodeFields(d.Grid.CellPolygon(i), outFields...); err != nil {
				return fmt.Errorf("landevo: error writing output shapefile: %v", err)
			}
		}
		shape.Close()
		return nil
	}
}
