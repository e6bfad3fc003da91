package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type showCmdConfig struct {
	*rootCmdConfig
	treeInput string
	top       int
}

func showCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &showCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a tree",
		Long:  `Print the questions and estimates of a tree, and optionally the items recommended on each of its leaves`,
		Run: func(cmd *cobra.Command, args []string) {
			err := config.Validate()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			t, err := loadTree(config.Context(), config.treeInput)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
			info := t.Info()
			fmt.Printf("tree grown with the %s criterion, like threshold %v, %d nodes, depth %d\n", info.Criterion, info.LikeThreshold, t.Len(), t.Depth())
			fmt.Println(t)
			if config.top <= 0 {
				return
			}
			for _, leaf := range t.Leaves() {
				path, err := t.Path(leaf.ID)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(3)
				}
				var top []int
				if leaf.Prediction != nil {
					top = leaf.Prediction.Top(config.top, nil)
				}
				fmt.Printf("leaf %d %v: %v\n", leaf.ID, path, top)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.treeInput), "tree", "t", "", "path to a JSON file, or redis://ADDR[/PREFIX] or badger://DIR node store, from which the tree will be read (required)")
	cmd.PersistentFlags().IntVar(&(config.top), "top", 0, "number of recommended items to list for every leaf (defaults to none)")
	return cmd
}

func (scc *showCmdConfig) Validate() error {
	if scc.treeInput == "" {
		return fmt.Errorf("required tree flag was not set")
	}
	return nil
}
