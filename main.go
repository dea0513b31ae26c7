package main

import (
	"os"

	"github.com/aaronzipp/snake-arena/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
