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

	"github.com/spf13/cobra"

	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/simulation"
)

// AccuracyCmd represents the accuracy command
var AccuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Report the splitting parameter and mesh chosen for the requested precision",
	Long: `
Runs only the accuracy analysis of the solver for the particles and prints the
G vector, the mesh and the estimated force errors, for each stencil order when
--orders is given,

gopppm accuracy -I input.yaml -P particles.dump --orders 2,3,4,5,6,7`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("accuracy called")
		pb := processInput(readModel(cmd))
		orders, _ := cmd.Flags().GetIntSlice("orders")
		Accuracy(pb, orders)
	},
}

func init() {
	rootCmd.AddCommand(AccuracyCmd)
	addInputFlags(AccuracyCmd)
	AccuracyCmd.Flags().IntSlice("orders", nil, "stencil orders to tabulate, default is the input order")
}

func Accuracy(pb *Problem, orders []int) {
	var (
		reg = simulation.DefaultRegistry()
		rep = kspace.LogReporter{}
	)
	if len(orders) == 0 {
		p, err := simulation.Estimate(reg, pb.Cfg, pb.Atoms, pb.Box, rep)
		if err != nil {
			exitOn(err)
		}
		fmt.Printf("%s\n", p)
		return
	}
	fmt.Printf("%6s %12s %16s %14s %14s\n", "order", "G vector", "grid", "kspace rms", "real rms")
	for _, order := range orders {
		cfg := pb.Cfg
		cfg.KSpace.Order = order
		p, err := simulation.Estimate(reg, cfg, pb.Atoms, pb.Box, rep)
		if err != nil {
			fmt.Printf("%6d %v\n", order, err)
			continue
		}
		fmt.Printf("%6d %12.6g %16s %14.6e %14.6e\n", order, p.GEwald,
			fmt.Sprintf("%dx%dx%d", p.Mesh[0], p.Mesh[1], p.Mesh[2]), p.KSpaceRMS, p.RealRMS)
	}
}
