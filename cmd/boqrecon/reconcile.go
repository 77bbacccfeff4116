package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/core/reconcile"
	"github.com/kirillkom/bid-reconciler/internal/core/usecase"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/fuzzy"
	"github.com/kirillkom/bid-reconciler/internal/infrastructure/spreadsheet/excel"
)

var (
	reconcileCatalog      string
	reconcileBids         []string
	reconcileConcurrency  int
	reconcileThreshold    float64
	reconcileAlternatives int
	reconcileSheet        string
	reconcileOutput       string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match one or more bid sheets against a BOQ and print the results as JSON",
	Long: `Reads the BOQ from a YAML file (tender + items) or a spreadsheet, then
reconciles every --bid sheet against it concurrently.

Examples:
  boqrecon reconcile --catalog boq.yaml --bid acme.xlsx --bid globex.csv
  boqrecon reconcile --catalog boq.xlsx --bid acme.xlsx --threshold 70 --output report.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := cfg.ReconcileDefaults()
		if cmd.Flags().Changed("threshold") {
			opts.FuzzyThreshold = reconcileThreshold
		}
		if cmd.Flags().Changed("alternatives") {
			opts.AlternativeCount = reconcileAlternatives
		}

		out := io.Writer(os.Stdout)
		if reconcileOutput != "" {
			f, err := os.Create(reconcileOutput)
			if err != nil {
				return eris.Wrapf(err, "reconcile: create %s", reconcileOutput)
			}
			defer f.Close()
			out = f
		}

		return runReconcile(cmd.Context(), batchInput{
			CatalogPath: reconcileCatalog,
			BidPaths:    reconcileBids,
			Concurrency: reconcileConcurrency,
			Options:     opts,
			Sheets:      excel.NewReader(excel.Options{SheetName: reconcileSheet}),
			Matcher:     fuzzy.NewMatcher(),
		}, out)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileCatalog, "catalog", "", "BOQ file (.yaml, .xlsx or .csv)")
	reconcileCmd.Flags().StringArrayVar(&reconcileBids, "bid", nil, "bid sheet to reconcile (repeatable)")
	reconcileCmd.Flags().IntVar(&reconcileConcurrency, "concurrency", 4, "bids reconciled in parallel")
	reconcileCmd.Flags().Float64Var(&reconcileThreshold, "threshold", domain.DefaultFuzzyThreshold, "fuzzy acceptance threshold (0-100)")
	reconcileCmd.Flags().IntVar(&reconcileAlternatives, "alternatives", domain.DefaultAlternativeCount, "alternatives kept per fuzzy or extra line")
	reconcileCmd.Flags().StringVar(&reconcileSheet, "sheet", "", "worksheet name (default: first sheet)")
	reconcileCmd.Flags().StringVarP(&reconcileOutput, "output", "o", "", "write JSON here instead of stdout")
	_ = reconcileCmd.MarkFlagRequired("catalog")
	_ = reconcileCmd.MarkFlagRequired("bid")
}

type batchInput struct {
	CatalogPath string
	BidPaths    []string
	Concurrency int
	Options     domain.ReconcileOptions
	Sheets      ports.SheetReader
	Matcher     ports.FuzzyMatcher
}

// bidReport is one entry of the JSON output. A bid that fails to load or
// reconcile carries Error and no Result; it never aborts the batch.
type bidReport struct {
	File   string                       `json:"file"`
	Bidder string                       `json:"bidder"`
	Result *domain.ReconciliationResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

type batchReport struct {
	Tender domain.Tender `json:"tender"`
	Bids   []bidReport   `json:"bids"`
}

func runReconcile(ctx context.Context, in batchInput, out io.Writer) error {
	if in.Options.FuzzyThreshold < 0 || in.Options.FuzzyThreshold > 100 {
		return eris.Errorf("reconcile: threshold must be within 0..100, got %v", in.Options.FuzzyThreshold)
	}
	if in.Options.AlternativeCount < 0 || in.Options.AlternativeCount > domain.MaxAlternativeCount {
		return eris.Errorf("reconcile: alternatives must be within 0..%d, got %d", domain.MaxAlternativeCount, in.Options.AlternativeCount)
	}

	tender, catalog, err := loadCatalog(ctx, in.CatalogPath, in.Sheets)
	if err != nil {
		return err
	}
	zap.L().Info("catalog loaded",
		zap.String("tender_id", tender.ID),
		zap.Int("items", len(catalog)),
		zap.Int("bids", len(in.BidPaths)),
	)

	engine := reconcile.NewEngine(in.Matcher)
	reports := make([]bidReport, len(in.BidPaths))

	g, gctx := errgroup.WithContext(ctx)
	if in.Concurrency > 0 {
		g.SetLimit(in.Concurrency)
	}
	for i, path := range in.BidPaths {
		g.Go(func() error {
			report := bidReport{File: path, Bidder: bidderFromPath(path)}
			result, runErr := reconcileFile(gctx, engine, in.Sheets, tender, catalog, path, report.Bidder, in.Options)
			if runErr != nil {
				zap.L().Error("bid failed", zap.String("file", path), zap.Error(runErr))
				report.Error = runErr.Error()
			} else {
				zap.L().Info("bid reconciled",
					zap.String("file", path),
					zap.Float64("match_percentage", result.Summary.MatchPercentage),
					zap.Int("needs_review", result.Summary.NeedsReviewCount),
				)
				report.Result = result
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batchReport{Tender: tender, Bids: reports}); err != nil {
		return eris.Wrap(err, "reconcile: write report")
	}
	return nil
}

func reconcileFile(
	ctx context.Context,
	engine *reconcile.Engine,
	sheets ports.SheetReader,
	tender domain.Tender,
	catalog []domain.CatalogItem,
	path, bidID string,
	opts domain.ReconcileOptions,
) (*domain.ReconciliationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open bid %s", path)
	}
	defer f.Close()

	rows, err := sheets.ReadRows(ctx, f)
	if err != nil {
		return nil, err
	}
	lines, err := usecase.MapBidLines(rows)
	if err != nil {
		return nil, err
	}

	result, _, err := engine.Run(ctx, reconcile.Input{
		Tender:  tender,
		BidID:   bidID,
		Lines:   lines,
		Catalog: catalog,
		Options: opts,
	})
	return result, err
}

func bidderFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
