package main

import (
	"github.com/sardine-ai/go-installer-config/cmd"
	"os"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
