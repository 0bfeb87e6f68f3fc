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

// Package landevoutil assembles landscape evolution simulations from
// configuration information and provides the command-line interface.
package landevoutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spatialmodel/landevo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to LandEvo.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Grid.Rows",
			usage: `
              Grid.Rows specifies the number of node rows in the model grid.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Cols",
			usage: `
              Grid.Cols specifies the number of node columns in the model grid.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx specifies the node spacing of the model grid [m].`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Boundary",
			usage: `
              Grid.Boundary specifies the boundary condition of the model
              grid. Valid options are "open", which leaves the whole
              perimeter open, and "watershed", which closes the perimeter
              except for the outlet node.`,
			defaultVal: "open",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.OutletNode",
			usage: `
              Grid.OutletNode specifies the grid index of the watershed
              outlet. It is ignored unless Grid.Boundary="watershed".`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.InitialRelief",
			usage: `
              Grid.InitialRelief specifies the amplitude of the random
              noise added to the initial topography [m].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Seed",
			usage: `
              Grid.Seed seeds the random initial topography so grids are
              reproducible.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "GridData",
			usage: `
              GridData specifies the location of a netcdf grid state file
              to start the simulation from. If it is empty, a new grid is
              generated from the Grid configuration variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "Model",
			usage: `
              Model specifies the model variant to run. Valid options are
              "basic", "basicDd", "basicVs", "basicDdVs", and "basicDdSt".`,
			defaultVal: "basic",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Run.Duration",
			usage: `
              Run.Duration specifies the total simulated time [yr].`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Run.Dt",
			usage: `
              Run.Dt specifies the duration of each time step [yr].`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Erosion.K",
			usage: `
              Erosion.K specifies the stream power erodibility coefficient.`,
			defaultVal: 0.001,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Erosion.M",
			usage: `
              Erosion.M specifies the drainage area exponent of the stream
              power law.`,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Erosion.N",
			usage: `
              Erosion.N specifies the slope exponent of the stream power law.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Erosion.Threshold",
			usage: `
              Erosion.Threshold specifies the initial stream power erosion
              threshold [m/yr].`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Erosion.ThresholdGrowth",
			usage: `
              Erosion.ThresholdGrowth specifies the rate at which the
              erosion threshold grows with cumulative incision depth
              [m/yr per m] in the "basicDd" family of model variants.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Diffusion.D",
			usage: `
              Diffusion.D specifies the hillslope diffusivity [m²/yr].`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Vs.HydraulicConductivity",
			usage: `
              Vs.HydraulicConductivity specifies the saturated hydraulic
              conductivity of the soil [m/yr] for the variable
              source-area runoff variants.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Vs.SoilThickness",
			usage: `
              Vs.SoilThickness specifies the hydrologically active soil
              thickness [m] for the variable source-area runoff variants.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Vs.RechargeRate",
			usage: `
              Vs.RechargeRate specifies the steady groundwater recharge
              rate [m/yr] for the variable source-area runoff variants.`,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Storm.MeanIntensity",
			usage: `
              Storm.MeanIntensity specifies the mean storm rainfall
              intensity [m/yr] for the stochastic variants.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Storm.ShapeFactor",
			usage: `
              Storm.ShapeFactor specifies the gamma distribution shape
              factor of the storm intensity distribution.`,
			defaultVal: 0.7,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Storm.InfiltrationCapacity",
			usage: `
              Storm.InfiltrationCapacity specifies the soil infiltration
              capacity [m/yr] for the stochastic variants.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Storm.Intermittency",
			usage: `
              Storm.Intermittency specifies the fraction of time that it
              rains, in (0, 1].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Storm.Seed",
			usage: `
              Storm.Seed seeds the storm generator so runs are
              reproducible.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Baselevel.Handler",
			usage: `
              Baselevel.Handler specifies how boundary elevations are
              forced through time. Valid options are "none", "single",
              which drives the outlet node only, "closed", which drives
              all non-core nodes, and "interior", which drives the core
              nodes with the opposite sign.`,
			defaultVal: "none",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Baselevel.LoweringRate",
			usage: `
              Baselevel.LoweringRate specifies a constant rate of boundary
              elevation change [m/yr]. Negative values lower the boundary.
              It is mutually exclusive with Baselevel.LoweringFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Baselevel.LoweringFile",
			usage: `
              Baselevel.LoweringFile specifies the location of a two-column
              table of time and cumulative elevation change that the driven
              nodes follow. It is mutually exclusive with
              Baselevel.LoweringRate.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Baselevel.EndElevation",
			usage: `
              Baselevel.EndElevation optionally rescales the lowering
              history so the driven nodes finish the run at this elevation
              [m]. Leave empty for no rescaling.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile specifies the path to the shapefile where model
              output will be saved.`,
			defaultVal: "output.shp",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be
              output and how they should be calculated from the grid
              fields.`,
			defaultVal: map[string]string{"elev": "topographic__elevation"},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "OutputInterval",
			usage: `
              OutputInterval specifies the model time between outputs [yr].
              Zero means output only at the end of the run.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "SaveFile",
			usage: `
              SaveFile specifies the path where the final grid state will
              be saved in netcdf format for later reuse. Leave empty to
              skip saving.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the simulation log file. If
              empty, the log is named after OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Plot.Field",
			usage: `
              Plot.Field specifies the grid field to render.`,
			defaultVal: landevo.TopographicElevation,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.File",
			usage: `
              Plot.File specifies the path to the PNG image to create.`,
			defaultVal: "plot.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("LANDEVO")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := b.String()
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("landevo: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "landevo",
	Short: "A landscape evolution model.",
	Long: `LandEvo simulates the evolution of topography over geologic time under
the combined action of channel erosion, hillslope transport, and
externally forced baselevel change.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'LANDEVO_var' where 'var' is the name of the variable to be set. Many
configuration variables are additionally allowed to contain environment
variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of LandEvo.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("LandEvo v%s\n", landevo.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a LandEvo simulation with the model variant chosen by the
Model configuration variable, writing results to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		gc, err := gridConfig(Cfg)
		if err != nil {
			return err
		}
		bl, err := baselevelConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("SaveFile")),
			outputVars,
			Cfg.GetFloat64("OutputInterval"),
			Cfg.GetString("Model"),
			gc, bl,
			modelParams(Cfg),
		)
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that creates and saves a new model grid.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create a model grid",
	Long: `grid creates a model grid with random initial topography as specified
by the information in the configuration file and saves it in netcdf format.
The saved data can then be loaded for future LandEvo simulations using the
GridData configuration variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := gridConfig(Cfg)
		if err != nil {
			return err
		}
		saveFile := os.ExpandEnv(Cfg.GetString("SaveFile"))
		if saveFile == "" {
			return fmt.Errorf("landevo: the grid command requires the SaveFile configuration variable")
		}
		return Grid(saveFile, gc)
	},
	DisableAutoGenTag: true,
}

// plotCmd is a command that renders a saved grid field as an image.
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render a grid field to a PNG image",
	Long: `plot reads the netcdf grid state file given by the GridData
configuration variable and renders one of its fields as a heat map.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Plot(
			os.ExpandEnv(Cfg.GetString("GridData")),
			Cfg.GetString("Plot.Field"),
			os.ExpandEnv(Cfg.GetString("Plot.File")),
		)
	},
	DisableAutoGenTag: true,
}
