package main

import (
	"os"

	"github.com/NREL/jade/cmd/jade/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
