// Package main provides the learnpilot CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "learnpilot",
	Short: "Paper study planner",
	Long:  "learnpilot turns a directory of research papers into a personalized study plan: it analyzes each paper, builds a concept dependency graph, schedules reading and reviews within your daily time budget, and generates study tasks per paper.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
