package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/topica/internal/source"
	"github.com/cognicore/topica/pkg/topica"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/result"
)

func trainCmd(a *app) *cobra.Command {
	var (
		topics  int
		passes  int
		seed    uint64
		measure string
		workers int
		out     string
		topN    int
	)
	cmd := &cobra.Command{
		Use:   "train <input>",
		Short: "Train a topic model on a directory, JSONL file or single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("topics") {
				a.cfg.Model.Topics = topics
			}
			if flags.Changed("passes") {
				a.cfg.Model.Passes = passes
			}
			if flags.Changed("seed") {
				a.cfg.Model.Seed = seed
			}
			if flags.Changed("measure") {
				a.cfg.Coherence.Measure = measure
			}
			if flags.Changed("workers") {
				a.cfg.Workers = workers
			}

			comp, err := a.cfg.Components(a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("normalizer capabilities",
				zap.Stringer("capabilities", comp.Normalizer.Capabilities()))

			docs, err := source.Load(args[0], a.logger.Named("source"))
			if err != nil {
				return err
			}

			comp.LDA.OnPass = func(cp lda.Checkpoint) error {
				a.logger.Info("pass",
					zap.Int("pass", cp.Pass),
					zap.Float64("per_word_bound", cp.PerWordBound),
					zap.Float64("topic_change", cp.TopicChange))
				return nil
			}
			rep, err := topica.FromComponents(comp, a.logger).Run(cmd.Context(), docs)
			if err != nil {
				return err
			}

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SaveRun(cmd.Context(), rep.Result); err != nil {
				return fmt.Errorf("save run: %w", err)
			}

			if out != "" {
				if err := exportResult(out, a.cfg.Store.Format, rep.Result); err != nil {
					return err
				}
			}
			return printSummary(cmd.OutOrStdout(), rep.Result, topN)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&topics, "topics", "k", 0, "Number of topics (overrides model.topics)")
	f.IntVar(&passes, "passes", 0, "Maximum passes (overrides model.passes)")
	f.Uint64Var(&seed, "seed", 0, "Random seed (overrides model.seed)")
	f.StringVar(&measure, "measure", "", "Coherence measure: c_v or c_npmi")
	f.IntVar(&workers, "workers", 0, "Worker count, 0 uses every CPU")
	f.StringVarP(&out, "out", "o", "", "Also export the result bundle to this file")
	f.IntVar(&topN, "top", 10, "Words shown per topic")
	return cmd
}

// exportResult writes r to path, picking the format from the extension and
// falling back to the configured one.
func exportResult(path, fallback string, r *result.TrainingResult) error {
	format, err := result.ParseFormat(filepath.Ext(path))
	if err != nil {
		if format, err = result.ParseFormat(fallback); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := result.Encode(f, r, format); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(w io.Writer, r *result.TrainingResult, topN int) error {
	fmt.Fprintf(w, "Run %s: %d documents, %d terms, %d topics, %d passes (%s)\n",
		r.Meta.RunID, r.Meta.NumDocs, r.Meta.VocabSize, r.Meta.K, r.Model.Passes, r.Model.Termination)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d empty documents\n", len(r.Skipped))
	}
	if r.Coherence != nil {
		fmt.Fprintf(w, "Coherence (%s): %.4f\n", r.Coherence.Measure, r.Coherence.Overall)
	}

	docs := make(map[int]int, len(r.Summary.Counts))
	for _, c := range r.Summary.Counts {
		docs[c.Topic] = c.Count
	}
	for k := 0; k < r.Meta.K; k++ {
		terms, err := r.TopicTerms(k, topN)
		if err != nil {
			return err
		}
		words := make([]string, len(terms))
		for i, t := range terms {
			words[i] = t.Term
		}
		line := fmt.Sprintf("Topic %d (%d docs", k, docs[k])
		if r.Coherence != nil {
			line += fmt.Sprintf(", coherence %.4f", r.Coherence.PerTopic[k])
		}
		fmt.Fprintf(w, "%s): %s\n", line, strings.Join(words, ", "))
	}
	if r.Summary.Unassigned > 0 {
		fmt.Fprintf(w, "Unassigned documents: %d\n", r.Summary.Unassigned)
	}
	return nil
}
