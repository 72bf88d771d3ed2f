package main

import (
	"os"

	"github.com/EvanWAppel/hermes/pkg/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
