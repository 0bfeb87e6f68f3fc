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
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/landevo"
	"github.com/spatialmodel/landevo/baselevel"
	"github.com/spatialmodel/landevo/erosion/diffusion"
	"github.com/spatialmodel/landevo/erosion/streampower"
	"github.com/spatialmodel/landevo/flow"
	"github.com/spatialmodel/landevo/precip"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"
)

// EffectiveDrainageArea is the name of the grid field holding drainage
// area discounted for subsurface flow capacity in the variable
// source-area runoff model variants.
const EffectiveDrainageArea = "effective_drainage_area"

// InitialTopographicElevation is the name of the grid field holding a
// snapshot of the starting topography, for output expressions that
// report elevation change.
const InitialTopographicElevation = "initial_topographic__elevation"

// ModelParams holds the process parameters shared by the model
// variants.
type ModelParams struct {
	Duration, Dt float64

	// Stream power law.
	K, M, N float64

	// Erosion threshold and its growth with incision depth.
	Threshold, ThresholdGrowth float64

	// Hillslope diffusivity.
	D float64

	// Variable source-area runoff.
	HydraulicConductivity float64
	SoilThickness         float64
	RechargeRate          float64

	// Stochastic storms.
	Storm precip.Opts
}

// modelParams unmarshals a viper configuration for the model process
// parameters.
func modelParams(cfg *viper.Viper) ModelParams {
	return ModelParams{
		Duration:              cfg.GetFloat64("Run.Duration"),
		Dt:                    cfg.GetFloat64("Run.Dt"),
		K:                     cfg.GetFloat64("Erosion.K"),
		M:                     cfg.GetFloat64("Erosion.M"),
		N:                     cfg.GetFloat64("Erosion.N"),
		Threshold:             cfg.GetFloat64("Erosion.Threshold"),
		ThresholdGrowth:       cfg.GetFloat64("Erosion.ThresholdGrowth"),
		D:                     cfg.GetFloat64("Diffusion.D"),
		HydraulicConductivity: cfg.GetFloat64("Vs.HydraulicConductivity"),
		SoilThickness:         cfg.GetFloat64("Vs.SoilThickness"),
		RechargeRate:          cfg.GetFloat64("Vs.RechargeRate"),
		Storm: precip.Opts{
			MeanIntensity:        cfg.GetFloat64("Storm.MeanIntensity"),
			ShapeFactor:          cfg.GetFloat64("Storm.ShapeFactor"),
			InfiltrationCapacity: cfg.GetFloat64("Storm.InfiltrationCapacity"),
			Intermittency:        cfg.GetFloat64("Storm.Intermittency"),
			Seed:                 uint64(cfg.GetInt64("Storm.Seed")),
		},
	}
}

// NewGrid creates a model grid according to c, either by loading a
// saved state file or by generating random initial topography.
func NewGrid(c *GridConfig) (*landevo.RasterGrid, error) {
	if c.GridData != "" {
		f, err := os.Open(c.GridData)
		if err != nil {
			return nil, fmt.Errorf("landevoutil: opening grid state file: %v", err)
		}
		defer f.Close()
		return landevo.LoadFields(f)
	}

	g := landevo.NewRasterGrid(c.Rows, c.Cols, c.Dx)
	if c.Boundary == "watershed" {
		if err := g.SetWatershedBoundary(c.OutletNode); err != nil {
			return nil, err
		}
	}
	z := g.AddZeros(landevo.TopographicElevation)
	rock := g.AddZeros(landevo.BedrockElevation)
	rng := rand.New(rand.NewSource(c.Seed))
	for _, i := range g.CoreNodes() {
		z[i] = c.InitialRelief * rng.Float64()
		rock[i] = z[i]
	}
	init := g.AddZeros(InitialTopographicElevation)
	copy(init, z)
	return g, nil
}

// effectiveAreaCalc returns a calculation that discounts drainage area
// for the fraction of flow carried in the subsurface, following the
// variable source-area concept: Aeff = A·exp(−Kh·H·dx·S / (R·A)).
// Where the soil can transmit all of the recharge delivered from
// upslope, the effective area approaches zero and channel erosion
// shuts off.
func effectiveAreaCalc(g *landevo.RasterGrid, p ModelParams) (landevo.NodeManipulator, error) {
	area, err := g.Field(flow.DrainageArea)
	if err != nil {
		return nil, fmt.Errorf("landevoutil: %v", err)
	}
	slope, err := g.Field(flow.SteepestSlope)
	if err != nil {
		return nil, fmt.Errorf("landevoutil: %v", err)
	}
	if !(p.RechargeRate > 0) {
		return nil, fmt.Errorf("landevoutil: Vs.RechargeRate=%g but should be >0", p.RechargeRate)
	}
	eff := g.AddZeros(EffectiveDrainageArea)
	transmissivity := p.HydraulicConductivity * p.SoilThickness * g.Dx / p.RechargeRate
	return func(g *landevo.RasterGrid, i int, Dt float64) {
		if area[i] <= 0 {
			eff[i] = 0
			return
		}
		eff[i] = area[i] * math.Exp(-transmissivity*slope[i]/area[i])
	}, nil
}

// thresholdCalc returns a calculation that grows the erosion threshold
// with cumulative incision depth, so channels become harder to erode
// the deeper they cut.
func thresholdCalc(g *landevo.RasterGrid, p ModelParams) landevo.NodeManipulator {
	eroded := g.AddZeros(streampower.CumulativeErosionDepth)
	thresh := g.AddZeros(streampower.ErosionThreshold)
	return func(g *landevo.RasterGrid, i int, Dt float64) {
		thresh[i] = p.Threshold + p.ThresholdGrowth*math.Max(0, eroded[i])
	}
}

// newBaselevelHandler creates the baselevel handler requested by c, or
// nil for "none".
func newBaselevelHandler(g *landevo.RasterGrid, c *BaselevelConfig, outletNode int) (baselevel.Handler, error) {
	switch c.Handler {
	case "none":
		return nil, nil
	case "single":
		return baselevel.NewSingleNodeHandler(g, outletNode, c.Opts)
	case "closed":
		return baselevel.NewClosedNodeHandler(g, true, c.Opts)
	case "interior":
		return baselevel.NewClosedNodeHandler(g, false, c.Opts)
	}
	return nil, fmt.Errorf("landevoutil: unknown baselevel handler %q", c.Handler)
}

// NewModel assembles a model variant into a runnable simulation.
// Valid variants are:
//
// "basic": stream power erosion plus linear diffusion.
//
// "basicDd": like basic, but the erosion threshold grows with
// cumulative incision depth.
//
// "basicVs": like basic, but erosion is driven by effective drainage
// area discounted for subsurface flow.
//
// "basicDdVs": basicDd and basicVs combined.
//
// "basicDdSt": like basicDd, but each step draws a storm from a gamma
// distribution and erosion is driven by the resulting discharge.
func NewModel(g *landevo.RasterGrid, variant string, bl *BaselevelConfig, outletNode int, p ModelParams) (*landevo.Model, error) {
	d := &landevo.Model{
		Grid: g,
		Dt:   p.Dt,
	}

	router, err := flow.NewRouter(g, flow.Opts{FillDepressions: true})
	if err != nil {
		return nil, err
	}
	d.RunFuncs = append(d.RunFuncs, flow.Route(router))

	eOpts := streampower.Opts{K: p.K, M: p.M, N: p.N, Threshold: p.Threshold}
	switch variant {
	case "basic":
	case "basicDd":
		eOpts.ThresholdField = streampower.ErosionThreshold
	case "basicVs":
		eOpts.AreaField = EffectiveDrainageArea
	case "basicDdVs":
		eOpts.ThresholdField = streampower.ErosionThreshold
		eOpts.AreaField = EffectiveDrainageArea
	case "basicDdSt":
		eOpts.ThresholdField = streampower.ErosionThreshold
		eOpts.AreaField = flow.SurfaceDischarge
	default:
		return nil, fmt.Errorf("landevoutil: unknown model variant %q", variant)
	}

	var calcs []landevo.NodeManipulator
	if eOpts.AreaField == EffectiveDrainageArea {
		calc, err := effectiveAreaCalc(g, p)
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, calc)
	}
	if eOpts.ThresholdField != "" {
		calcs = append(calcs, thresholdCalc(g, p))
	}
	if len(calcs) > 0 {
		d.RunFuncs = append(d.RunFuncs, landevo.Calculations(calcs...))
	}
	if variant == "basicDdSt" {
		gen, err := precip.NewGenerator(p.Storm)
		if err != nil {
			return nil, err
		}
		d.RunFuncs = append(d.RunFuncs, precip.Update(gen))
	}

	eroder, err := streampower.NewEroder(g, router, eOpts)
	if err != nil {
		return nil, err
	}
	d.RunFuncs = append(d.RunFuncs, streampower.Erode(eroder))

	differ, err := diffusion.NewDiffer(g, diffusion.Opts{D: p.D})
	if err != nil {
		return nil, err
	}
	d.RunFuncs = append(d.RunFuncs, diffusion.Diffuse(differ))

	handler, err := newBaselevelHandler(g, bl, outletNode)
	if err != nil {
		return nil, err
	}
	if handler != nil {
		d.RunFuncs = append(d.RunFuncs, baselevel.Update(handler))
	}

	d.RunFuncs = append(d.RunFuncs, landevo.AdvanceTime(p.Duration))
	return d, nil
}

// Run creates a grid and a model variant from the given configuration,
// runs the simulation, and writes the results.
func Run(logFile, outputFile, saveFile string, outputVars map[string]string,
	outputInterval float64, variant string, gc *GridConfig, bl *BaselevelConfig,
	p ModelParams) error {

	log := logrus.New()
	lf, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("landevoutil: creating log file: %v", err)
	}
	defer lf.Close()
	log.SetOutput(lf)

	g, err := NewGrid(gc)
	if err != nil {
		return err
	}
	d, err := NewModel(g, variant, bl, gc.OutletNode, p)
	if err != nil {
		return err
	}

	o, err := landevo.NewOutputter(outputFile, outputVars, nil)
	if err != nil {
		return err
	}
	d.InitFuncs = append(d.InitFuncs, o.CheckOutputVars())

	progress := func(d *landevo.Model) error {
		log.WithFields(logrus.Fields{
			"modeltime": d.Time,
			"duration":  p.Duration,
		}).Info("advancing simulation")
		return nil
	}
	if outputInterval > 0 {
		d.RunFuncs = append(d.RunFuncs,
			landevo.RunPeriodically(outputInterval, progress),
			landevo.RunPeriodically(outputInterval, o.Output()))
	} else {
		d.CleanupFuncs = append(d.CleanupFuncs, o.Output())
	}
	if saveFile != "" {
		d.CleanupFuncs = append(d.CleanupFuncs, func(d *landevo.Model) error {
			w, err := os.Create(saveFile)
			if err != nil {
				return fmt.Errorf("landevoutil: creating grid state file: %v", err)
			}
			defer w.Close()
			return d.Grid.WriteFields(w)
		})
	}

	log.WithFields(logrus.Fields{
		"variant": variant,
		"rows":    g.Rows,
		"cols":    g.Cols,
	}).Info("starting simulation")
	if err := d.Init(); err != nil {
		return err
	}
	if err := d.Run(); err != nil {
		return err
	}
	if err := d.Cleanup(); err != nil {
		return err
	}
	log.Info("simulation finished")
	return nil
}

// Grid creates a model grid with random initial topography and saves
// it to a netcdf state file.
func Grid(saveFile string, gc *GridConfig) error {
	g, err := NewGrid(gc)
	if err != nil {
		return err
	}
	w, err := os.Create(saveFile)
	if err != nil {
		return fmt.Errorf("landevoutil: creating grid state file: %v", err)
	}
	defer w.Close()
	return g.WriteFields(w)
}
