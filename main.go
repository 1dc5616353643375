package main

import (
	"os"

	"github.com/abhisek/chemgen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
