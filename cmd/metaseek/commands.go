package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/metaseek/metaseek/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed files by natural language query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		filter, _ := cmd.Flags().GetString("filter")

		client, err := newAPIClient(configPath)
		if err != nil {
			return err
		}

		body := struct {
			Query  string `json:"query"`
			Filter string `json:"filter,omitempty"`
		}{Query: args[0], Filter: filter}

		var results []*types.SearchResult
		if err := client.post("/search", body, &results); err != nil {
			return err
		}
		printResults(cmd, results)
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently modified indexed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListCommand(cmd, "/recent")
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List the most frequently accessed indexed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListCommand(cmd, "/popular")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		client, err := newAPIClient(configPath)
		if err != nil {
			return err
		}

		var status struct {
			Files     int `json:"files"`
			Vectors   int `json:"vectors"`
			Dimension int `json:"dimension"`
		}
		if err := client.get("/status", &status); err != nil {
			return err
		}

		cmd.Printf("Indexed files:    %d\n", status.Files)
		cmd.Printf("Stored vectors:   %d\n", status.Vectors)
		cmd.Printf("Vector dimension: %d\n", status.Dimension)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, recentCmd, popularCmd, statusCmd} {
		c.Flags().String("config", "", "config file path (default: metaseek.yaml)")
	}
	searchCmd.Flags().String("filter", "", "SQL WHERE fragment over the files table, skips the planner")
	recentCmd.Flags().Int("limit", 5, "maximum number of files to list")
	popularCmd.Flags().Int("limit", 5, "maximum number of files to list")
}

func runListCommand(cmd *cobra.Command, path string) error {
	configPath, _ := cmd.Flags().GetString("config")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return types.ErrInvalidLimit
	}

	client, err := newAPIClient(configPath)
	if err != nil {
		return err
	}

	var results []*types.SearchResult
	if err := client.get(path+"?limit="+strconv.Itoa(limit), &results); err != nil {
		return err
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []*types.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No matching files.")
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("%d. %s", r.Rank, r.Path)
		if r.Score != nil {
			line += fmt.Sprintf("  (score %.3f)", *r.Score)
		}
		cmd.Println(line)
		cmd.Printf("   modified %s, %d bytes, accessed %d times\n",
			r.ModifiedAt, r.Size, r.AccessCount)
	}
}
