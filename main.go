package main

import (
	"os"

	"github.com/adminstyler/adminstyler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
