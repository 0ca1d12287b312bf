package main

import (
	"os"

	"github.com/leadgate/leadgate/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
