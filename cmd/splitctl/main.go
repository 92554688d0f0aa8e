package main

import (
	"os"

	"github.com/ansyar-project/split-the-bill/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
