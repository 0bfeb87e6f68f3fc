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

package landevoutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/landevo/baselevel"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// GridConfig holds the information needed to create a model grid.
type GridConfig struct {
	Rows, Cols int
	Dx         float64

	// Boundary is either "open" or "watershed".
	Boundary   string
	OutletNode int

	// InitialRelief is the amplitude of the random noise added to the
	// initial topography, and Seed makes it reproducible.
	InitialRelief float64
	Seed          uint64

	// GridData optionally names a netcdf state file to load instead
	// of generating a new grid.
	GridData string
}

// BaselevelConfig holds the information needed to create a baselevel
// handler.
type BaselevelConfig struct {
	// Handler is "none", "single", "closed", or "interior".
	Handler string
	Opts    baselevel.Opts
}

// checkOutputVars removes end lines and expands environment variables
// in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.shp")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("landevo: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one
// isn't specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// gridConfig unmarshals a viper configuration for a model grid.
func gridConfig(cfg *viper.Viper) (*GridConfig, error) {
	c := GridConfig{
		Rows:          cfg.GetInt("Grid.Rows"),
		Cols:          cfg.GetInt("Grid.Cols"),
		Dx:            cfg.GetFloat64("Grid.Dx"),
		Boundary:      cfg.GetString("Grid.Boundary"),
		OutletNode:    cfg.GetInt("Grid.OutletNode"),
		InitialRelief: cfg.GetFloat64("Grid.InitialRelief"),
		Seed:          uint64(cfg.GetInt64("Grid.Seed")),
		GridData:      os.ExpandEnv(cfg.GetString("GridData")),
	}
	if c.GridData != "" {
		return &c, nil
	}
	if c.Rows < 3 || c.Cols < 3 {
		return nil, fmt.Errorf("parsing grid configuration: the grid must be at least 3×3 nodes, got %d×%d", c.Rows, c.Cols)
	}
	if !(c.Dx > 0) {
		return nil, fmt.Errorf("parsing grid configuration: Grid.Dx=%g but should be >0", c.Dx)
	}
	switch c.Boundary {
	case "open", "watershed":
	default:
		return nil, fmt.Errorf("parsing grid configuration: Grid.Boundary must be \"open\" or \"watershed\", got %q", c.Boundary)
	}
	return &c, nil
}

// baselevelConfig unmarshals a viper configuration for baselevel
// forcing. The rate and end-elevation variables are read as strings so
// that empty means unset rather than zero.
func baselevelConfig(cfg *viper.Viper) (*BaselevelConfig, error) {
	c := BaselevelConfig{
		Handler: cfg.GetString("Baselevel.Handler"),
	}
	switch c.Handler {
	case "none":
		return &c, nil
	case "single", "closed", "interior":
	default:
		return nil, fmt.Errorf("parsing baselevel configuration: Baselevel.Handler must be "+
			`"none", "single", "closed", or "interior", got %q`, c.Handler)
	}
	if s := cfg.GetString("Baselevel.LoweringRate"); s != "" {
		rate, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("parsing baselevel configuration: Baselevel.LoweringRate: %v", err)
		}
		c.Opts.LoweringRate = &rate
	}
	c.Opts.LoweringFilePath = os.ExpandEnv(cfg.GetString("Baselevel.LoweringFile"))
	if s := cfg.GetString("Baselevel.EndElevation"); s != "" {
		end, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("parsing baselevel configuration: Baselevel.EndElevation: %v", err)
		}
		c.Opts.ModelEndElevation = &end
	}
	return &c, nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it might be a json
// object if it was set from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
