package main

import (
	"fmt"
	"os"

	bdtree "github.com/mquad/bd-tree"
	"github.com/spf13/cobra"
)

type testCmdConfig struct {
	*rootCmdConfig
	sourceConfig
	treeInput  string
	queryInput string
	dataInput  string
	opts       bdtree.EvaluateOptions
}

func testCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &testCmdConfig{rootCmdConfig: rootConfig, opts: bdtree.DefaultEvaluateOptions()}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the performance of a tree",
		Long:  `Test the estimates and recommendations of a tree for a set of test users, who answer its questions with their query ratings and are judged on their held-out ratings`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			config.sourceConfig.verbose = config.logger
			t, err := loadTree(config.Context(), config.treeInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			query, err := config.triples(config.Context(), config.queryInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			test, err := config.triples(config.Context(), config.dataInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			config.Logf("Testing tree against %d query and %d test ratings...", len(query), len(test))
			report, err := bdtree.Evaluate(config.Context(), t, query, test, config.opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "testing tree: %v\n", err)
				os.Exit(5)
			}
			config.Logf("Done")
			fmt.Println(report)
		},
	}
	config.sourceConfig.addFlags(cmd)
	flags := cmd.PersistentFlags()
	flags.StringVarP(&(config.treeInput), "tree", "t", "", "path to a JSON file, or redis://ADDR[/PREFIX] or badger://DIR node store, from which the tree to test will be read (required)")
	flags.StringVarP(&(config.queryInput), "query", "q", "", "input with the ratings test users answer the tree's questions with (required)")
	flags.StringVarP(&(config.dataInput), "input", "i", "", "path to an input CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL or MongoDB connection URL with the held-out test ratings (defaults to STDIN, interpreted as CSV)")
	flags.IntVar(&(config.opts.Cutoff), "cutoff", config.opts.Cutoff, "length of the rankings measured")
	flags.Float64Var(&(config.opts.HalfLife), "half-life", config.opts.HalfLife, "rank at which half-life utility halves")
	flags.IntVar(&(config.opts.Threads), "threads", config.opts.Threads, "number of users evaluated concurrently")
	return cmd
}

func (tcc *testCmdConfig) Validate() error {
	if tcc.treeInput == "" {
		return fmt.Errorf("required tree flag was not set")
	}
	if tcc.queryInput == "" {
		return fmt.Errorf("required query flag was not set")
	}
	return nil
}
