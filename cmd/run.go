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
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/simulation"
	"github.com/notargets/gopppm/utils"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the long range energy, virial and forces of a particle file",
	Long: `
Reads the input parameters and the particles, splits them over the ranks and
computes the reciprocal space Coulomb energy, virial and forces once,

gopppm run -I input.yaml -P particles.dump --ranks 8`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("run called")
		pb := processInput(readModel(cmd))
		if prof, _ := cmd.Flags().GetBool("profile"); prof {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		pb.Cfg.CheckSpread, _ = cmd.Flags().GetBool("checkSpread")
		perfOn, _ := cmd.Flags().GetBool("perf")
		verbose, _ := cmd.Flags().GetBool("verbose")
		printForces, _ := cmd.Flags().GetBool("forces")
		pb.IP.Print()
		Run(pb, perfOn, verbose, printForces)
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	addInputFlags(RunCmd)
	RunCmd.Flags().Bool("profile", false, "write a CPU profile of the run to the current directory")
	RunCmd.Flags().Bool("perf", false, "count the CPU instructions of the run with perf events (linux)")
	RunCmd.Flags().BoolP("verbose", "v", false, "print memory use")
	RunCmd.Flags().Bool("forces", false, "print the force on every particle")
	RunCmd.Flags().Bool("checkSpread", false, "rebuild the charge density from the sparse assignment operator")
}

func Run(pb *Problem, perfOn, verbose, printForces bool) {
	var (
		res   *simulation.Result
		err   error
		start = time.Now()
		reg   = simulation.DefaultRegistry()
	)
	compute := func() (err error) {
		res, err = simulation.Run(reg, pb.Cfg, pb.Atoms, pb.Box, kspace.LogReporter{})
		return
	}
	if perfOn {
		var instructions uint64
		if instructions, err = countInstructions(compute); err == nil && instructions != 0 {
			fmt.Printf("CPU instructions = %d\n", instructions)
		}
	} else {
		err = compute()
	}
	if err != nil {
		exitOn(err)
	}
	PrintResult(pb, res, time.Since(start))
	if printForces {
		PrintForces(pb, res)
	}
	if verbose {
		fmt.Printf("Solver memory = %.1f KiB, %s\n", res.Memory/1024, utils.GetMemUsage())
	}
}

func PrintResult(pb *Problem, res *simulation.Result, elapsed time.Duration) {
	fmt.Printf("%s on %d ranks, process grid %d x %d x %d, %d atoms\n",
		pb.Cfg.Style, pb.Cfg.Ranks, res.Procs[0], res.Procs[1], res.Procs[2], pb.Atoms.NLocal)
	fmt.Printf("%s\n", res.Params)
	fmt.Printf("Init time = %v, compute time = %v, total = %v\n", res.InitTime, res.ComputeTime, elapsed)
	fmt.Printf("Long range energy = %.12g\n", res.Energy)
	fmt.Printf("Virial =\n%v\n", mat.Formatted(res.Tensor(), mat.Prefix("")))
	if pb.Cfg.CheckSpread {
		fmt.Printf("Charge assignment deviation = %g\n", res.SpreadError)
	}
	var net [3]float64
	for _, f := range res.Forces {
		for n := 0; n < 3; n++ {
			net[n] += f[n]
		}
	}
	fmt.Printf("Net force = %12.5e %12.5e %12.5e\n", net[0], net[1], net[2])
}

func PrintForces(pb *Problem, res *simulation.Result) {
	a := pb.Atoms
	fmt.Printf("%8s %4s %10s %16s %16s %16s\n", "id", "type", "q", "fx", "fy", "fz")
	for i := 0; i < a.NLocal; i++ {
		f := res.Forces[i]
		fmt.Printf("%8d %4d %10.5f %16.9e %16.9e %16.9e\n", a.Tag[i], a.Type[i], a.Q[i], f[0], f[1], f[2])
	}
}
