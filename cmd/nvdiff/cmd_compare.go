package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"nvdiff/internal/codec"
	"nvdiff/internal/domain"
	"nvdiff/internal/service"
)

// outputFlags are shared by the commands that produce an annotated vintage
type outputFlags struct {
	out        string
	changeLogs string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the annotated vintage to this file (.yaml or .json)")
	cmd.Flags().StringVar(&o.changeLogs, "changelogs", "", "write change logs into this directory")
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		of        outputFlags
		pairsFile string
	)

	cmd := &cobra.Command{
		Use:   "compare [previous] <incoming>",
		Short: "Compare an incoming vintage with the previous one and commit the result",
		Long: `Compares the incoming vintage against the previous one and appends the
outcome to the ledger. The previous vintage must be the annotated output of
an earlier cycle so every element carries its NID. With a single argument
the incoming vintage is treated as the first one and every record is an
Addition.

Elements are paired by geometry unless --pairs names a YAML list of
{old, new} key pairs.

A cycle that would break the ledger's lifecycle rules is flagged: nothing is
committed and the command fails.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var old *domain.Snapshot
			curPath := args[0]
			if len(args) == 2 {
				var err error
				if old, err = codec.ReadFile(args[0]); err != nil {
					return err
				}
				curPath = args[1]
			}
			cur, err := codec.ReadFile(curPath)
			if err != nil {
				return err
			}

			var pairs []domain.Pair
			if pairsFile != "" {
				if pairs, err = readPairs(pairsFile); err != nil {
					return err
				}
			}

			l, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			report, err := a.newService(ctx, l).RunCycle(ctx, old, cur, pairs)
			if err != nil {
				if report != nil && report.Flagged {
					fmt.Fprintf(cmd.ErrOrStderr(), "cycle %s flagged for manual review: %s\n", report.CycleID, report.FlagReason)
				}
				return err
			}
			if err := a.writeOutputs(report, of); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	of.register(cmd)
	cmd.Flags().StringVar(&pairsFile, "pairs", "", "YAML file listing {old, new} element key pairs")
	return cmd
}

func newBaselineCmd(a *app) *cobra.Command {
	var of outputFlags

	cmd := &cobra.Command{
		Use:   "baseline <vintage>",
		Short: "Record every object of a vintage as an Addition",
		Long: `Starts a ledger from a vintage whose identifiers were assigned elsewhere.
NIDs carried by the records are kept; records without one are issued a new
NID. A NID shared by two records is a conflict and the second record is
left out of the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			snap, err := codec.ReadFile(args[0])
			if err != nil {
				return err
			}

			l, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			report, err := a.newService(ctx, l).Baseline(ctx, snap)
			if err != nil {
				return err
			}
			if err := a.writeOutputs(report, of); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	of.register(cmd)
	return cmd
}

func (a *app) writeOutputs(report *service.CycleReport, of outputFlags) error {
	if of.out != "" {
		if err := codec.WriteFile(of.out, report.Output); err != nil {
			return err
		}
		a.logger.Info("wrote annotated vintage", zap.String("path", of.out))
	}
	if of.changeLogs != "" {
		paths, err := codec.WriteChangeLogs(of.changeLogs, report.ChangeLogs)
		if err != nil {
			return err
		}
		a.logger.Info("wrote change logs", zap.String("dir", of.changeLogs), zap.Int("files", len(paths)))
	}
	return nil
}

func readPairs(path string) ([]domain.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pairs: %w", err)
	}
	var pairs []domain.Pair
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse pairs: %w", err)
	}
	if pairs == nil {
		return nil, errors.New("pairs file is empty")
	}
	return pairs, nil
}

func printReport(w io.Writer, r *service.CycleReport) {
	fmt.Fprintf(w, "cycle %s  dataset %s  method %s  %s\n",
		r.CycleID, r.Dataset, r.Method, r.Timestamp.Format("2006-01-02"))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tEFFECT\tCOUNT")
	for _, kind := range []domain.FeatureKind{domain.KindElement, domain.KindJunction} {
		counts := r.Counts(kind)
		effects := make([]domain.Effect, 0, len(counts))
		for e := range counts {
			effects = append(effects, e)
		}
		sort.Slice(effects, func(i, j int) bool {
			if effects[i].Priority() != effects[j].Priority() {
				return effects[i].Priority() > effects[j].Priority()
			}
			return effects[i] < effects[j]
		})
		for _, e := range effects {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", kind, e, counts[e])
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "ledger entries: %d\n", r.Entries)
	if conflicts := r.Conflicts(); len(conflicts) > 0 {
		fmt.Fprintf(w, "not finalized: %d\n", len(conflicts))
		for _, o := range conflicts {
			fmt.Fprintf(w, "  %s %s: %v\n", o.Kind, o.Key(), o.Err)
		}
	}
	if r.Unlinked > 0 {
		fmt.Fprintf(w, "points without roadnid: %d\n", r.Unlinked)
	}
}
