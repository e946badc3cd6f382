package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resolveCIK accepts a CIK or a ticker known to the registry
func (s *session) resolveCIK(arg string) (string, error) {
	if isCIK(arg) {
		return edgar.FormatCIK(arg), nil
	}
	return s.registry.CIKForTicker(strings.ToUpper(arg))
}

func addBatchFlags(cmd *cobra.Command, opts *edgar.BatchOptions) {
	cmd.Flags().StringVarP(&opts.FormType, "form", "f", "10-K", "form type, e.g. 10-K, 4, 13D")
	cmd.Flags().StringVar(&opts.DateFrom, "from", "", "earliest filing date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.DateTo, "to", "", "latest filing date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.IncludePaginated, "all", false, "include older paginated filings")
}

func newFilingsCommand() *cobra.Command {
	var opts edgar.BatchOptions
	cmd := &cobra.Command{
		Use:   "filings TICKER|CIK",
		Short: "List a company's filings from the submissions API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if opts.CIK, err = s.resolveCIK(args[0]); err != nil {
				return err
			}
			filings, err := s.client.SelectFilings(cmd.Context(), opts)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Filed", "Form", "Accession", "Document"})
			for _, f := range filings {
				t.AppendRow(table.Row{f.FilingDate, f.Form, f.AccessionNumber, f.URL})
			}
			t.AppendFooter(table.Row{"Total", len(filings)})
			t.Render()
			return nil
		},
	}
	addBatchFlags(cmd, &opts)
	return cmd
}

func newTextsCommand() *cobra.Command {
	var (
		opts   edgar.BatchOptions
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "texts TICKER|CIK",
		Short: "Save the text of a company's filings to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if opts.CIK, err = s.resolveCIK(args[0]); err != nil {
				return err
			}
			result, err := s.client.FetchFilingTexts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			for _, doc := range result.Documents {
				path, err := edgar.SaveText(outDir, doc.Filing.Ref(), doc.Filing.Form, doc.Text)
				if err != nil {
					return err
				}
				s.logger.Info("saved", zap.String("path", path))
			}
			fmt.Printf("Saved %d of %d filings to %s (%d errors)\n", result.Fetched, result.TotalFound, outDir, len(result.Errors))
			return nil
		},
	}
	addBatchFlags(cmd, &opts)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of filings, most recent first")
	return cmd
}

func newTextCommand() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "text URL",
		Short: "Print or save the text of one archives document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := edgar.ParseDocumentURL(args[0])
			if err != nil {
				return err
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			text, err := s.client.FetchDocumentText(cmd.Context(), edgar.Filing{
				CIK:             ref.CIK,
				AccessionNumber: ref.Accession,
				PrimaryDocument: ref.Document,
				URL:             args[0],
			})
			if err != nil {
				return err
			}

			if outDir == "" {
				fmt.Println(text)
				return nil
			}
			path, err := edgar.SaveText(outDir, ref, strings.TrimSuffix(ref.Document, ".htm"), text)
			if err != nil {
				return err
			}
			s.logger.Info("saved", zap.String("path", path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "save to this directory instead of printing")
	return cmd
}
