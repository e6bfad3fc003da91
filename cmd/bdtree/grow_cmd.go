package main

import (
	"fmt"
	"os"

	bdtree "github.com/mquad/bd-tree"
	"github.com/mquad/bd-tree/ratings"
	"github.com/spf13/cobra"
)

type growCmdConfig struct {
	*rootCmdConfig
	sourceConfig
	dataInput      string
	relevanceInput string
	output         string
	candidates     []int
	diagnostics    bool
	seed           int64
	flags          bdtree.Config
	noCache        bool
}

func growCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &growCmdConfig{rootCmdConfig: rootConfig, flags: bdtree.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a tree from a set of ratings",
		Long:  `Grow an elicitation tree from a set of ratings, choosing at each node the item whose question best splits the users reaching it.`,
		Run: func(cmd *cobra.Command, args []string) {
			config.sourceConfig.verbose = config.logger
			cfg, err := config.Config(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			triples, err := config.triples(config.Context(), config.dataInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			store := ratings.New(cfg.Scale)
			if err = store.Init(triples); err != nil {
				fmt.Fprintf(os.Stderr, "indexing ratings: %v\n", err)
				os.Exit(3)
			}
			opts := []bdtree.Option{bdtree.WithLogger(log)}
			if config.relevanceInput != "" {
				relevance, err := config.triples(config.Context(), config.relevanceInput)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(4)
				}
				opts = append(opts, bdtree.WithRelevance(relevance))
			}
			if cmd.Flags().Changed("seed") {
				opts = append(opts, bdtree.WithRandSource(bdtree.NewLockedSource(config.seed)))
			}
			b, err := bdtree.NewBuilder(store, cfg, opts...)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(5)
			}
			config.Logf("Growing tree from %d ratings of %d users on %d items with the %s criterion...", store.Len(), len(store.Users()), len(store.Items()), b.Criterion().Name())
			var candidates []int
			if cmd.Flags().Changed("candidates") {
				candidates = config.candidates
			}
			t, err := b.Build(config.Context(), candidates, config.diagnostics)
			if err != nil {
				fmt.Fprintf(os.Stderr, "growing the tree: %v\n", err)
				os.Exit(6)
			}
			config.Logf("Done")
			config.Logf("%v", t)
			if err = outputTree(config.Context(), config.output, t); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(7)
			}
		},
	}
	config.sourceConfig.addFlags(cmd)
	def := bdtree.DefaultConfig()
	flags := cmd.PersistentFlags()
	flags.StringVarP(&(config.dataInput), "input", "i", "", "path to an input CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL or MongoDB connection URL with the ratings to grow the tree from (defaults to STDIN, interpreted as CSV)")
	flags.StringVar(&(config.relevanceInput), "relevance", "", "input with held-out ratings the ranking criterion judges rankings against (defaults to the training ratings)")
	flags.StringVarP(&(config.output), "output", "o", "", "path to a file to which the tree will be written in JSON format, or redis://ADDR[/PREFIX] or badger://DIR to save it on a node store (defaults to STDOUT)")
	flags.IntSliceVar(&(config.candidates), "candidates", nil, "comma-separated ids of the items that may be asked, in order of preference (defaults to the most popular items)")
	flags.BoolVar(&(config.diagnostics), "diagnostics", false, "log every grown node")
	flags.Int64Var(&(config.seed), "seed", 0, "seed of randomized selection (defaults to a time-based one)")
	flags.StringVar(&(config.flags.Criterion), "criterion", def.Criterion, "objective to grow the tree with: error or ranking")
	flags.IntVar(&(config.flags.DepthMax), "depth-max", def.DepthMax, "maximum number of questions asked")
	flags.IntVar(&(config.flags.RatingsMin), "ratings-min", def.RatingsMin, "minimum number of ratings of a node to be split and of every branch of a split")
	flags.IntVar(&(config.flags.ItemRatingsMin), "item-ratings-min", def.ItemRatingsMin, "minimum number of ratings of an item among a node's users to be asked there")
	flags.IntVar(&(config.flags.MinUsers), "min-users", def.MinUsers, "minimum number of users of a node to be split")
	flags.Float64Var(&(config.flags.BuReg), "bu-reg", def.BuReg, "regularization of user biases")
	flags.Float64Var(&(config.flags.HSmooth), "h-smooth", def.HSmooth, "weight of the parent estimates on node estimates")
	flags.IntVar(&(config.flags.TopPop), "top-pop", def.TopPop, "number of most popular items that may be asked (0 for all)")
	flags.IntVar(&(config.flags.NumThreads), "threads", def.NumThreads, "number of goroutines growing the tree")
	flags.BoolVar(&(config.flags.Randomize), "randomize", def.Randomize, "pick the item to ask at random among the best ones")
	flags.IntVar(&(config.flags.RandCoeff), "rand-coeff", def.RandCoeff, "number of best items randomized selection picks from")
	flags.IntVar(&(config.flags.NDCGCutoff), "ndcg-cutoff", def.NDCGCutoff, "length of the rankings the ranking criterion judges")
	flags.BoolVar(&(config.noCache), "no-cache", false, "do not reuse partitions across nodes")
	return cmd
}

// Config returns the loaded configuration overridden by the flags set
// on the command, or an error if the result is not valid.
func (gcc *growCmdConfig) Config(cmd *cobra.Command) (bdtree.Config, error) {
	cfg, err := gcc.rootCmdConfig.Config()
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"criterion", func() { cfg.Criterion = gcc.flags.Criterion }},
		{"depth-max", func() { cfg.DepthMax = gcc.flags.DepthMax }},
		{"ratings-min", func() { cfg.RatingsMin = gcc.flags.RatingsMin }},
		{"item-ratings-min", func() { cfg.ItemRatingsMin = gcc.flags.ItemRatingsMin }},
		{"min-users", func() { cfg.MinUsers = gcc.flags.MinUsers }},
		{"bu-reg", func() { cfg.BuReg = gcc.flags.BuReg }},
		{"h-smooth", func() { cfg.HSmooth = gcc.flags.HSmooth }},
		{"top-pop", func() { cfg.TopPop = gcc.flags.TopPop }},
		{"threads", func() { cfg.NumThreads = gcc.flags.NumThreads }},
		{"randomize", func() { cfg.Randomize = gcc.flags.Randomize }},
		{"rand-coeff", func() { cfg.RandCoeff = gcc.flags.RandCoeff }},
		{"ndcg-cutoff", func() { cfg.NDCGCutoff = gcc.flags.NDCGCutoff }},
		{"no-cache", func() { cfg.CacheEnabled = !gcc.noCache }},
	}
	for _, o := range overrides {
		if changed(o.flag) {
			o.apply()
		}
	}
	return cfg, cfg.Validate()
}
