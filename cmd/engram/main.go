package main

import (
	"os"

	"github.com/engramdb/engram/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
