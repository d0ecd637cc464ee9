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
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gopppm/InputParameters"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/simulation"
	"github.com/notargets/gopppm/types"
)

type Model struct {
	InputFile    string
	ParticleFile string
}

// Problem is an input file and its particles, ready to run
type Problem struct {
	IP    *InputParameters.InputParameters
	Cfg   simulation.Config
	Atoms *particles.Atoms
	Box   types.Box
}

const exampleFile = `
########################################
Title: "Test Case"
Style: pppm # Can be "pppm/tip4p" or "ewald"
Units: lj
Precision: 1.e-5
Cutoff: 2.5
Order: 5
Ranks: 4
########################################
`

func readModel(cmd *cobra.Command) (m *Model) {
	var err error
	m = &Model{}
	if m.InputFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
		panic(err)
	}
	if m.ParticleFile, err = cmd.Flags().GetString("particleFile"); err != nil {
		panic(err)
	}
	return
}

func processInput(m *Model) (pb *Problem) {
	var (
		err      error
		willExit bool
	)
	if len(m.ParticleFile) == 0 {
		err := fmt.Errorf("must supply a particle file (-P, --particleFile) in LAMMPS text dump format")
		fmt.Printf("error: %s\n", err.Error())
		willExit = true
	}
	if len(m.InputFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		fmt.Printf("Example File:%s\n", exampleFile)
		willExit = true
	}
	if willExit {
		os.Exit(1)
	}
	pb = &Problem{IP: &InputParameters.InputParameters{}}
	var data []byte
	if data, err = ioutil.ReadFile(m.InputFile); err != nil {
		exitOn(err)
	}
	if err = pb.IP.Parse(data); err != nil {
		exitOn(err)
	}
	if pb.Cfg, err = pb.IP.Config(); err != nil {
		exitOn(err)
	}
	// config file and environment override the input file
	if viper.IsSet("ranks") {
		pb.Cfg.Ranks = viper.GetInt("ranks")
	}
	if viper.IsSet("threads") {
		pb.Cfg.KSpace.Threads = viper.GetInt("threads")
	}
	if viper.IsSet("fftBackend") {
		pb.Cfg.KSpace.FFTBackend = viper.GetString("fftBackend")
	}
	var f *os.File
	if f, err = os.Open(m.ParticleFile); err != nil {
		exitOn(err)
	}
	defer f.Close()
	if pb.Atoms, pb.Box, err = particles.ReadDump(f); err != nil {
		exitOn(fmt.Errorf("reading %s: %w", m.ParticleFile, err))
	}
	return
}

func exitOn(err error) {
	fmt.Printf("error: %s\n", err.Error())
	os.Exit(1)
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Precision\n\t- Cutoff\n\t- Order")
	cmd.Flags().StringP("particleFile", "P", "", "LAMMPS text dump with columns id, type, q, x, y, z")
	cmd.Flags().Int("ranks", 1, "number of ranks the particles and mesh are split over")
	cmd.Flags().Int("threads", 1, "worker go routines per rank")
	cmd.Flags().String("fftBackend", "gonum", "line transform library: gonum or godsp")
	for _, name := range []string{"ranks", "threads", "fftBackend"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}
