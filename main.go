package main

import "github.com/notargets/gopppm/cmd"

func main() {
	cmd.Execute()
}
