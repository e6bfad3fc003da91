package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mquad/bd-tree/tree"
	"github.com/spf13/cobra"
)

type elicitCmdConfig struct {
	*rootCmdConfig
	treeInput      string
	undefinedValue string
	top            int
	strict         bool
}

func elicitCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &elicitCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "elicit",
		Short: "Get recommendations answering questions",
		Long:  `Walk the loaded tree rating the items it asks about to get the recommendations for a new user`,
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
			var opts []tree.TraverserOption
			if config.strict {
				opts = append(opts, tree.WithFallback(tree.FallbackFail))
			}
			trav := tree.NewTraverser(t, opts...)
			if err = elicit(trav, os.Stdin, os.Stdout, config.undefinedValue); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
			prediction, err := trav.Prediction()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(4)
			}
			fmt.Printf("After %d answers your estimated mean rating is %.2f and your recommended items are %v\n", trav.Depth(), prediction.Estimate(), prediction.Top(config.top, nil))
		},
	}
	cmd.PersistentFlags().StringVarP(&(config.treeInput), "tree", "t", "", "path to a JSON file, or redis://ADDR[/PREFIX] or badger://DIR node store, from which the tree will be read (required)")
	cmd.PersistentFlags().StringVarP(&(config.undefinedValue), "undefined-value", "u", "?", "value to input when the asked item is unknown")
	cmd.PersistentFlags().IntVar(&(config.top), "top", 10, "number of recommended items to list")
	cmd.PersistentFlags().BoolVar(&(config.strict), "strict", false, "fail instead of falling back to the unknown answer when the tree has no branch for an answer")
	return cmd
}

func (ecc *elicitCmdConfig) Validate() error {
	if ecc.treeInput == "" {
		return fmt.Errorf("required tree flag was not set")
	}
	return nil
}

/*
elicit asks the questions of the traverser on w and moves it with the
answers read from r until it reaches a leaf. Answers that are not a
finite rating nor the undefined value are rejected and asked again.
*/
func elicit(trav *tree.Traverser, r io.Reader, w io.Writer, undefinedValue string) error {
	scanner := bufio.NewScanner(r)
	for !trav.AtLeaf() {
		item, err := trav.CurrentQuery()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Please rate item %d:\n(valid values are real numbers or %s if unknown)\n", item, undefinedValue)
		if !scanner.Scan() {
			if err = scanner.Err(); err != nil {
				return fmt.Errorf("reading answer: %v", err)
			}
			return fmt.Errorf("reading answer: %w", io.ErrUnexpectedEOF)
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == undefinedValue {
			err = trav.TraverseUnknown()
		} else {
			rating, perr := strconv.ParseFloat(answer, 64)
			if perr != nil || math.IsNaN(rating) || math.IsInf(rating, 0) {
				fmt.Fprintf(w, "%q is not a valid rating.\n", answer)
				continue
			}
			err = trav.Answer(rating)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
