package main

import (
	"fmt"
	"os"

	"sprint-history/cmd/sprint-history/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
