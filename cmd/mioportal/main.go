package main

import (
	"os"

	"github.com/snaka/mioportal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
