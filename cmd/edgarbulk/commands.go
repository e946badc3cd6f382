package main

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"strings"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type archiveConstructor[T any] func(edgar.Downloader, edgar.Resolver, ...edgar.ArchiveOption) (*edgar.BulkArchive[T], error)

// withArchive opens the configured dataset, runs fn, and releases the archive
func withArchive[T any](s *session, newArchive archiveConstructor[T], fn func(*edgar.BulkArchive[T]) error) error {
	archive, err := newArchive(s.client, s.registry, append(s.cfg.archiveOptions(), edgar.WithArchiveLogger(s.logger))...)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			s.logger.Warn("failed to release archive", zap.Error(err))
		}
	}()
	return fn(archive)
}

// runDataset dispatches on --dataset. facts and subs must do the same thing
// for their record type.
func runDataset(cmd *cobra.Command,
	facts func(*session, *edgar.BulkArchive[*edgar.CompanyFacts]) error,
	subs func(*session, *edgar.BulkArchive[*edgar.Submissions]) error,
) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.Dataset == datasetSubmissions {
		return withArchive[*edgar.Submissions](s, edgar.NewSubmissionsArchive, func(a *edgar.BulkArchive[*edgar.Submissions]) error {
			return subs(s, a)
		})
	}
	return withArchive[*edgar.CompanyFacts](s, edgar.NewCompanyFactsArchive, func(a *edgar.BulkArchive[*edgar.CompanyFacts]) error {
		return facts(s, a)
	})
}

func newDownloadCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the bulk archive and keep it at --output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataset(cmd,
				func(s *session, a *edgar.BulkArchive[*edgar.CompanyFacts]) error {
					return download(cmd.Context(), s, a, output)
				},
				func(s *session, a *edgar.BulkArchive[*edgar.Submissions]) error {
					return download(cmd.Context(), s, a, output)
				},
			)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "path to keep the archive at")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func download[T any](ctx context.Context, s *session, a *edgar.BulkArchive[T], output string) error {
	if err := a.Download(ctx, true); err != nil {
		return err
	}
	if err := a.Persist(output); err != nil {
		return err
	}
	s.logger.Info("archive saved",
		zap.String("path", a.Path()),
		zap.Int("companies", len(a.Index().CIKFilenames())),
		zap.Int("unlisted", len(a.Index().Unlisted())),
	)
	return nil
}

func newRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record TICKER|CIK",
		Short: "Print one company's record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataset(cmd,
				func(_ *session, a *edgar.BulkArchive[*edgar.CompanyFacts]) error {
					return printRecord(cmd.Context(), a, args[0])
				},
				func(_ *session, a *edgar.BulkArchive[*edgar.Submissions]) error {
					return printRecord(cmd.Context(), a, args[0])
				},
			)
		},
	}
}

// isCIK reports whether arg looks like a CIK rather than a ticker
func isCIK(arg string) bool {
	return strings.Trim(arg, "0123456789") == "" && edgar.ValidateCIK(edgar.FormatCIK(arg)) == nil
}

func printRecord[T any](ctx context.Context, a *edgar.BulkArchive[T], arg string) error {
	var (
		record T
		err    error
	)
	if isCIK(arg) {
		record, err = a.RecordByCIK(ctx, arg)
	} else {
		record, err = a.Record(ctx, strings.ToUpper(arg))
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func newUnlistedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlisted",
		Short: "List CIKs in the archive that have no ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataset(cmd,
				func(_ *session, a *edgar.BulkArchive[*edgar.CompanyFacts]) error {
					return printUnlisted(cmd.Context(), a)
				},
				func(_ *session, a *edgar.BulkArchive[*edgar.Submissions]) error {
					return printUnlisted(cmd.Context(), a)
				},
			)
		},
	}
}

func printUnlisted[T any](ctx context.Context, a *edgar.BulkArchive[T]) error {
	if err := a.Download(ctx, false); err != nil {
		return err
	}
	idx := a.Index()
	cikFiles := idx.CIKFilenames()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"CIK", "Filename"})
	for _, cik := range idx.Unlisted() {
		t.AppendRow(table.Row{cik, cikFiles[cik]})
	}
	t.AppendFooter(table.Row{"Total", len(idx.Unlisted())})
	t.Render()
	return nil
}

// scanStats is the result of a full archive scan
type scanStats struct {
	Records int
	Errors  int
	Items   int
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Scan every record and report totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataset(cmd,
				func(s *session, a *edgar.BulkArchive[*edgar.CompanyFacts]) error {
					return printStats(cmd.Context(), s, a, "Facts", countFacts)
				},
				func(s *session, a *edgar.BulkArchive[*edgar.Submissions]) error {
					return printStats(cmd.Context(), s, a, "Recent filings", func(sub *edgar.Submissions) int {
						return len(sub.Filings.Recent.AccessionNumber)
					})
				},
			)
		},
	}
}

func countFacts(cf *edgar.CompanyFacts) int {
	n := 0
	for _, c := range cf.AllConcepts() {
		for _, facts := range c.Units {
			n += len(facts)
		}
	}
	return n
}

func printStats[T any](ctx context.Context, s *session, a *edgar.BulkArchive[T], label string, count func(T) int) error {
	stats, err := edgar.ForAll(ctx, a, func(records iter.Seq2[T, error]) (scanStats, error) {
		var st scanStats
		for record, err := range records {
			if err != nil {
				// Submissions archives also hold paginated files, which are not company records
				st.Errors++
				s.logger.Debug("skipping entry", zap.Error(err))
				continue
			}
			st.Records++
			st.Items += count(record)
		}
		return st, ctx.Err()
	})
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Records", stats.Records},
		{"Unparsed entries", stats.Errors},
		{label, stats.Items},
		{"Unlisted CIKs", len(a.Index().Unlisted())},
	})
	t.Render()
	return nil
}
