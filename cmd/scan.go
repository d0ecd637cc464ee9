/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/notargets/avs/chart2d"
	utils2 "github.com/notargets/avs/utils"
	"github.com/spf13/cobra"

	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/simulation"
)

// ScanCmd represents the scan command
var ScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Measure the PPPM force error against an Ewald sum over meshes and orders",
	Long: `
Computes reference forces with a tightly converged Ewald sum at the splitting
parameter of the input precision, then runs the PPPM solver for every mesh
and stencil order requested and prints the measured RMS force error next to
the estimate,

gopppm scan -I input.yaml -P particles.dump --meshes 8,16,32 --orders 3,5,7 --graph`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("scan called")
		pb := processInput(readModel(cmd))
		meshes, _ := cmd.Flags().GetIntSlice("meshes")
		orders, _ := cmd.Flags().GetIntSlice("orders")
		graph, _ := cmd.Flags().GetBool("graph")
		Scan(pb, meshes, orders, graph)
	},
}

func init() {
	rootCmd.AddCommand(ScanCmd)
	addInputFlags(ScanCmd)
	ScanCmd.Flags().IntSlice("meshes", []int{8, 12, 16, 24, 32}, "mesh points along each axis")
	ScanCmd.Flags().IntSlice("orders", []int{3, 5, 7}, "stencil orders")
	ScanCmd.Flags().BoolP("graph", "g", false, "plot log10 of the force error against the mesh size")
}

func Scan(pb *Problem, meshes, orders []int, graph bool) {
	var (
		reg = simulation.DefaultRegistry()
		rep = kspace.LogReporter{}
	)
	if pb.Cfg.KSpace.TIP4P != nil {
		exitOn(fmt.Errorf("%w: the Ewald reference has no TIP4P sites", kspace.ErrConfiguration))
	}
	sort.Ints(meshes)
	p, err := simulation.Estimate(reg, pb.Cfg, pb.Atoms, pb.Box, rep)
	if err != nil {
		exitOn(err)
	}
	ref := pb.Cfg
	ref.Style = "ewald"
	ref.KSpace.GEwald = p.GEwald
	if ref.KSpace.Precision *= 1.e-3; ref.KSpace.Precision == 0 {
		ref.KSpace.Precision = 1.e-8
	}
	var resRef *simulation.Result
	if resRef, err = simulation.Run(reg, ref, pb.Atoms, pb.Box, rep); err != nil {
		exitOn(err)
	}
	fmt.Printf("Ewald reference, G vector = %.8g, kmax = %v, energy = %.12g\n",
		p.GEwald, resRef.Params.KMax, resRef.Energy)
	fmt.Printf("%6s %6s %14s %14s %14s\n", "order", "mesh", "energy", "rms error", "estimate")
	errs := make([][]float64, len(orders))
	for io, order := range orders {
		errs[io] = make([]float64, len(meshes))
		for im, m := range meshes {
			cfg := pb.Cfg
			cfg.Style = "pppm"
			cfg.KSpace.Order = order
			cfg.KSpace.GEwald = p.GEwald
			cfg.KSpace.Mesh = [3]int{m, m, m}
			res, err := simulation.Run(reg, cfg, pb.Atoms, pb.Box, kspace.SilentReporter{})
			if err != nil {
				fmt.Printf("%6d %6d %v\n", order, m, err)
				errs[io][im] = math.NaN()
				continue
			}
			errs[io][im] = rmsDiff(res.Forces, resRef.Forces)
			fmt.Printf("%6d %6d %14.8g %14.6e %14.6e\n", order, m, res.Energy, errs[io][im], res.Params.KSpaceRMS)
		}
	}
	if graph {
		plotScan(meshes, errs)
	}
}

func rmsDiff(f, ref [][3]float64) float64 {
	var sum float64
	for i := range f {
		for n := 0; n < 3; n++ {
			d := f[i][n] - ref[i][n]
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(len(f)))
}

var scanColors = []color.RGBA{
	{R: 255, G: 80, B: 80, A: 255},
	{R: 80, G: 255, B: 80, A: 255},
	{R: 80, G: 160, B: 255, A: 255},
	{R: 255, G: 220, B: 60, A: 255},
	{R: 220, G: 80, B: 255, A: 255},
}

// plotScan draws one polyline of log10(error) against the mesh size per
// order and blocks while the window is open
func plotScan(meshes []int, errs [][]float64) {
	var (
		yMin, yMax = float32(math.MaxFloat32), -float32(math.MaxFloat32)
		lines      = make(map[color.RGBA][]float32)
	)
	for io := range errs {
		col := scanColors[io%len(scanColors)]
		for im := 1; im < len(meshes); im++ {
			e0, e1 := errs[io][im-1], errs[io][im]
			if !(e0 > 0) || !(e1 > 0) {
				continue
			}
			y0, y1 := float32(math.Log10(e0)), float32(math.Log10(e1))
			yMin, yMax = min(yMin, y0, y1), max(yMax, y0, y1)
			lines[col] = append(lines[col], float32(meshes[im-1]), y0, float32(meshes[im]), y1)
		}
	}
	if len(lines) == 0 {
		fmt.Println("nothing to plot")
		return
	}
	ch := chart2d.NewChart2D(float32(meshes[0]), float32(meshes[len(meshes)-1]), yMin-0.5, yMax+0.5,
		1024, 1024, utils2.WHITE, utils2.BLACK)
	for col, line := range lines {
		ch.AddLine(line, col)
	}
	select {}
}
