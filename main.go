package main

import (
	"os"

	"github.com/fmuoria/agent-studio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
