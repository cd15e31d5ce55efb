package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/pipeline"
	"github.com/jacentio/marquee/query"
	"github.com/jacentio/marquee/source"
)

func newLoadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Denormalize the exports in --data-dir and write them to the table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := a.loader()
			if err != nil {
				return err
			}
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			res, err := pipeline.New(loader, s, a.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "run %s: wrote %d documents to %s in %d batches (%d retries, %d duplicates, %d skipped) in %s\n",
				res.RunID, res.Written.Written, a.opts.table, res.Written.Batches,
				res.Written.Retries, res.Written.Duplicates, res.Written.Skipped, res.Elapsed)
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Denormalize the exports in --data-dir into a batch-write file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := a.loader()
			if err != nil {
				return err
			}

			var w io.Writer = a.stdout
			var f io.WriteCloser
			if out != "" && out != "-" {
				if f, err = a.createFile(filepath.Clean(out)); err != nil {
					return err
				}
				w = f
			}

			res, err := pipeline.New(loader, nil, a.logger).Export(w, a.opts.table)
			if f != nil {
				if closeErr := f.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("close %s: %w", out, closeErr)
				}
			}
			if err != nil {
				return err
			}
			a.logger.Info("export written", "documents", res.Denormalized.Documents, "out", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file; - writes to stdout.")
	return cmd
}

func newWorkloadCommand(a *app) *cobra.Command {
	var (
		keys     []string
		keysFile string
		cfg      = query.DefaultWorkloadConfig()
	)
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Run the analytical workload against the table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Keys = keys
			if keysFile != "" {
				fromFile, err := source.ReadKeys(keysFile)
				if err != nil {
					return err
				}
				cfg.Keys = append(cfg.Keys, fromFile...)
			}

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			svc := query.New(s, a.logger)
			svc.SetAllPages(a.opts.allPages)
			svc.SetPageLimit(a.opts.scanLimit)

			rep, err := svc.Workload(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printWorkload(a.stdout, rep)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&keys, "keys", nil, "Title keys to look up.")
	f.StringVar(&keysFile, "keys-file", "", "File of title keys to look up, one per line.")
	f.StringVar(&cfg.TitleType, "title-type", cfg.TitleType, "Title type for the runtime averages.")
	f.IntVar(&cfg.YearLow, "year-low", cfg.YearLow, "First start year for the runtime averages.")
	f.IntVar(&cfg.YearHigh, "year-high", cfg.YearHigh, "Last start year for the runtime averages.")
	f.IntVar(&cfg.TopGenres, "top-genres", cfg.TopGenres, "Number of genres to rank.")
	return cmd
}

func printWorkload(w io.Writer, rep query.WorkloadReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "lookups\tfound %d\tmissing %d\t%s\n", len(rep.Found), len(rep.Missing), rep.Elapsed[query.PartLookup])
	for _, k := range rep.Missing {
		fmt.Fprintf(tw, "\tmissing\t%s\t\n", k)
	}

	if rep.BusiestYear.Count > 0 {
		fmt.Fprintf(tw, "busiest year\t%s\t%d titles\t%s\n", rep.BusiestYear.Key, rep.BusiestYear.Count, rep.Elapsed[query.PartBusiestYear])
	} else {
		fmt.Fprintf(tw, "busiest year\tnone\t\t%s\n", rep.Elapsed[query.PartBusiestYear])
	}

	fmt.Fprintf(tw, "top genres\t\t\t%s\n", rep.Elapsed[query.PartTopGenres])
	for _, g := range rep.TopGenres {
		fmt.Fprintf(tw, "\t%s\t%d\t\n", g.Key, g.Count)
	}

	fmt.Fprintf(tw, "runtime by year\t\t\t%s\n", rep.Elapsed[query.PartRuntime])
	for _, g := range rep.RuntimeByYear {
		fmt.Fprintf(tw, "\t%s\t%.1f min\t(%d titles)\n", g.Group, g.Average, g.Count)
	}

	if mv := rep.MostVoted; mv != nil {
		fmt.Fprintf(tw, "most voted\t%s %s\t%d votes\t%s\n", mv.Tconst, mv.PrimaryTitle, mv.NumVotes, rep.Elapsed[query.PartMostVoted])
	} else {
		fmt.Fprintf(tw, "most voted\tnone\t\t%s\n", rep.Elapsed[query.PartMostVoted])
	}

	fmt.Fprintf(tw, "total\t\t\t%s\n", rep.Total)
	return tw.Flush()
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY...",
		Short: "Print the stored documents for the given title keys as JSON lines.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			found, missing, err := query.New(s, a.logger).LookupMany(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, doc := range found {
				b, err := codec.MarshalItemJSON(doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(b))
			}
			if len(missing) > 0 {
				return fmt.Errorf("no document for %d of %d keys: %v", len(missing), len(args), missing)
			}
			return nil
		},
	}
}
