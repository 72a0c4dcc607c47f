package main

import (
	"os"

	"github.com/tilpner/github-label-feed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
