package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cognicore/topica/internal/source"
	"github.com/cognicore/topica/pkg/topica"
	"github.com/cognicore/topica/pkg/topica/analytics"
)

type preprocessReport struct {
	Documents   int64                `json:"documents"`
	Skipped     []string             `json:"skipped,omitempty"`
	Languages   map[string]int64     `json:"languages"`
	Tokens      int64                `json:"tokens"`
	UniqueTerms int                  `json:"unique_terms"`
	TopTerms    []analytics.TermStat `json:"top_terms"`
	Ubiquitous  []analytics.TermStat `json:"ubiquitous,omitempty"`
}

func preprocessCmd(a *app) *cobra.Command {
	var (
		top      int
		minShare float64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "preprocess <input>",
		Short: "Normalize a corpus and report its statistics without training",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.cfg.Components(a.logger)
			if err != nil {
				return err
			}
			docs, err := source.Load(args[0], a.logger.Named("source"))
			if err != nil {
				return err
			}
			prep, err := topica.FromComponents(comp, a.logger).Preprocess(cmd.Context(), docs)
			if err != nil {
				return err
			}

			s := prep.Stats
			rep := preprocessReport{
				Documents:   s.TotalDocs,
				Skipped:     prep.Skipped,
				Languages:   s.Languages,
				Tokens:      s.TotalTokens,
				UniqueTerms: s.UniqueTerms(),
				TopTerms:    s.TopTerms(top),
			}
			if minShare > 0 {
				rep.Ubiquitous = s.Ubiquitous(minShare)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			fmt.Fprintf(w, "Documents: %d (skipped %d)\n", rep.Documents, len(rep.Skipped))
			langs := make([]string, 0, len(rep.Languages))
			for l := range rep.Languages {
				langs = append(langs, l)
			}
			sort.Strings(langs)
			for _, l := range langs {
				fmt.Fprintf(w, "  %s: %d\n", l, rep.Languages[l])
			}
			fmt.Fprintf(w, "Tokens: %d, unique terms: %d\n", rep.Tokens, rep.UniqueTerms)
			fmt.Fprintf(w, "Top %d terms:\n", len(rep.TopTerms))
			for _, t := range rep.TopTerms {
				fmt.Fprintf(w, "  %-20s freq=%d df=%d (%.1f%%)\n", t.Term, t.Freq, t.DF, t.Share*100)
			}
			if len(rep.Ubiquitous) > 0 {
				fmt.Fprintf(w, "Terms in at least %.0f%% of documents:\n", minShare*100)
				for _, t := range rep.Ubiquitous {
					fmt.Fprintf(w, "  %s (%.1f%%)\n", t.Term, t.Share*100)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&top, "top", 20, "Number of most frequent terms to report")
	f.Float64Var(&minShare, "ubiquitous", 0, "Also list terms in at least this share of documents (0 disables)")
	f.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
