package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nvdiff/internal/codec"
	"nvdiff/internal/config"
	"nvdiff/internal/domain"
)

// asOfFlag parses --as-of, defaulting to now
type asOfFlag struct {
	raw string
}

func (f *asOfFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.raw, "as-of", "", "point in time (RFC 3339 or YYYY-MM-DD, default now)")
}

func (f *asOfFlag) value() (time.Time, error) {
	if f.raw == "" {
		return time.Now().UTC(), nil
	}
	return codec.ParseTimestamp(f.raw)
}

func newReconstructCmd(a *app) *cobra.Command {
	var asOf asOfFlag

	cmd := &cobra.Command{
		Use:   "reconstruct <nid>",
		Short: "Show the state of an object as of a point in time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := asOf.value()
			if err != nil {
				return err
			}

			l, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			f, err := l.Reconstruct(domain.NID(args[0]), ts)
			if err != nil {
				return err
			}
			if f == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s did not exist at %s\n", args[0], ts.Format(time.RFC3339))
				return nil
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(f); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	asOf.register(cmd)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <nid>",
		Short: "List the ledger entries of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			h := l.History(domain.NID(args[0]))
			if len(h) == 0 {
				return fmt.Errorf("no history for %s", args[0])
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tTIMESTAMP\tEFFECT\tCYCLE")
			for _, e := range h {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.Timestamp.Format(time.RFC3339), e.Effect, e.CycleID)
			}
			return tw.Flush()
		},
	}
}

func newDatasetCmd(a *app) *cobra.Command {
	var (
		asOf asOfFlag
		out  string
	)

	cmd := &cobra.Command{
		Use:   "dataset <name>",
		Short: "Rebuild the network as it stood at a point in time",
		Long: `Rebuilds every element and junction that existed at the given time from
the ledger. Records are keyed by NID. The result is written as a vintage
file, or summarized when --out is not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := asOf.value()
			if err != nil {
				return err
			}

			l, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			snap := l.Snapshot(args[0], ts)
			if out != "" {
				return codec.WriteFile(out, snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s as of %s: %d elements, %d junctions\n",
				args[0], ts.Format(time.RFC3339), len(snap.Elements), len(snap.Junctions))
			return nil
		},
	}

	asOf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the rebuilt vintage to this file (.yaml or .json)")
	return cmd
}

func newLastCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "last <dataset>",
		Short: "Show the last committed cycle of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.Close()

			id, ts, err := a.newService(cmd.Context(), l).LastCycle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, ts.Format(time.RFC3339))
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Summary())
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
