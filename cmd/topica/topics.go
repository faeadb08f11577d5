package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cognicore/topica/pkg/topica/assign"
	"github.com/cognicore/topica/pkg/topica/result"
	"github.com/cognicore/topica/pkg/topica/store"
)

func topicsCmd(a *app) *cobra.Command {
	var (
		n    int
		file string
	)
	cmd := &cobra.Command{
		Use:   "topics [run-id]",
		Short: "Show the top words of every topic of a stored or exported run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if file != "" {
				r, err := readExport(file)
				if err != nil {
					return err
				}
				if err := printSummary(w, r, n); err != nil {
					return err
				}
				printWeights(cmd, r)
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("need a run id or --file")
			}

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			r, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for k := 0; k < r.Meta.K; k++ {
				terms, err := st.TopicTerms(cmd.Context(), args[0], k, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Topic %d:", k)
				for _, t := range terms {
					fmt.Fprintf(w, " %s(%.4f)", t.Term, t.Weight)
				}
				fmt.Fprintln(w)
			}
			printWeights(cmd, r)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "words", "n", 10, fmt.Sprintf("Words per topic (at most %d from the store)", store.TopTermsStored))
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read an exported bundle instead of the store")
	return cmd
}

func printWeights(cmd *cobra.Command, r *result.TrainingResult) {
	weights := assign.Weights(assign.Matrix(r.Model.DocumentTopic))
	fmt.Fprint(cmd.OutOrStdout(), "Topic weights:")
	for k, w := range weights {
		fmt.Fprintf(cmd.OutOrStdout(), " %d=%.3f", k, w)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func readExport(path string) (*result.TrainingResult, error) {
	format, err := result.ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return result.Decode(f, format)
}
