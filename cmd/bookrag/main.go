// Package main provides the entry point for the bookrag CLI.
package main

import (
	"os"

	"github.com/tutorlib/bookrag/cmd/bookrag/cmd"
	"github.com/tutorlib/bookrag/internal/output"
)

func main() {
	if err := cmd.Execute(); err != nil {
		output.New(os.Stderr).Error("error: " + err.Error())
		os.Exit(1)
	}
}
