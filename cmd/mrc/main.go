package main

import (
	"os"

	"github.com/openmri/mrc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
