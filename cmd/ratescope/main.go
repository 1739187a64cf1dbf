// ratescope — currency pair exchange rate analysis
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smenon/ratescope/api"
	"github.com/smenon/ratescope/internal/analysis"
	"github.com/smenon/ratescope/internal/config"
	"github.com/smenon/ratescope/internal/infra"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/internal/providers/exchangerateapi"
	"github.com/smenon/ratescope/internal/providers/xrates"
	"github.com/smenon/ratescope/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ratescope",
	Short: "ratescope — currency pair exchange rate analysis",
	Long: `ratescope fetches a currency pair's exchange rate for each of the
last N calendar days, derives daily changes, a 7-day moving average,
summary statistics, and qualitative insights.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(serveCmd)
}

// buildRegistry wires up the rate providers: exchangerate-api as the
// default, x-rates as the keyless fallback.
func buildRegistry() (*provider.Registry, error) {
	log := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	registry := provider.NewRegistry()

	primary := exchangerateapi.New(
		exchangerateapi.WithLogger(log),
		exchangerateapi.WithConcurrency(cfg.Analysis.Concurrency),
	)
	if cfg.Provider.APIKey != "" {
		if err := primary.Init(map[string]string{"api_key": cfg.Provider.APIKey}); err != nil {
			return nil, err
		}
		if err := registry.Register(primary); err != nil {
			return nil, err
		}
	}

	fallback := xrates.New(xrates.WithLogger(log))
	if err := registry.Register(fallback); err != nil {
		return nil, err
	}

	return registry, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ratescope %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a currency pair over the trailing day range",
	Long: `Fetch per-day exchange rates for a currency pair, derive daily
changes and the 7-day moving average, and print summary statistics and
insights. Use --json for the records-oriented export form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("base")
		target, _ := cmd.Flags().GetString("target")
		days, _ := cmd.Flags().GetInt("days")
		providerName, _ := cmd.Flags().GetString("provider")
		asJSON, _ := cmd.Flags().GetBool("json")

		if base == "" {
			base = cfg.Analysis.BaseCurrency
		}
		if target == "" {
			target = cfg.Analysis.TargetCurrency
		}
		if days == 0 {
			days = cfg.Analysis.Days
		}

		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		log := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		opts := []analysis.Option{}
		if providerName != "" {
			opts = append(opts, analysis.WithProvider(providerName))
		}

		analyzer, err := analysis.New(registry, log, models.Pair{Base: base, Target: target}, days, opts...)
		if err != nil {
			return err
		}

		report, err := analyzer.Run(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON {
			data, err := models.ExportRecords(report.Series)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		printReport(report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("base", "", "base currency code (e.g., AUD)")
	analyzeCmd.Flags().String("target", "", "target currency code (e.g., NZD)")
	analyzeCmd.Flags().Int("days", 0, "trailing calendar-day count")
	analyzeCmd.Flags().String("provider", "", "pin a specific rate provider")
	analyzeCmd.Flags().Bool("json", false, "print records-oriented JSON export")
}

// printReport renders the analyzed series, statistics, and insights.
func printReport(report *analysis.Report) {
	fmt.Printf("%s → %s, past %d days\n\n", report.Pair.Base, report.Pair.Target, report.Days)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tExchange Rate\tDaily Change\t7-Day Moving Average")
	for _, row := range report.Series {
		change, avg := "-", "-"
		if row.DailyChange != nil {
			change = fmt.Sprintf("%.4f", *row.DailyChange)
		}
		if row.MovingAvg7 != nil {
			avg = fmt.Sprintf("%.4f", *row.MovingAvg7)
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", row.Date.Format(models.DateLayout), row.Rate, change, avg)
	}
	w.Flush()

	stats := report.Statistics
	fmt.Println("\nStatistics")
	fmt.Printf("  Best Exchange Rate:   %v\n", stats.BestRate)
	fmt.Printf("  Worst Exchange Rate:  %v\n", stats.WorstRate)
	fmt.Printf("  Average Rate:         %.4f\n", stats.AverageRate)
	fmt.Printf("  Highest Daily Change: %.4f\n", stats.MaxDailyChange)
	fmt.Printf("  Lowest Daily Change:  %.4f\n", stats.MinDailyChange)

	fmt.Println("\nInsights")
	for _, insight := range report.Insights {
		fmt.Printf("  - %s\n", insight)
	}
}

// --- Latest Command ---

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Fetch the current exchange rate for a currency pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("base")
		target, _ := cmd.Flags().GetString("target")
		providerName, _ := cmd.Flags().GetString("provider")

		if base == "" {
			base = cfg.Analysis.BaseCurrency
		}
		if target == "" {
			target = cfg.Analysis.TargetCurrency
		}

		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		params := provider.QueryParams{
			provider.ParamBase:   base,
			provider.ParamTarget: target,
		}
		if providerName != "" {
			params[provider.ParamProvider] = providerName
		}

		result, err := registry.FetchWithFallback(cmd.Context(), provider.ModelCurrencySnapshot, params)
		if err != nil {
			return err
		}
		rate, ok := result.Data.(float64)
		if !ok {
			return fmt.Errorf("unexpected data type %T", result.Data)
		}

		fmt.Printf("1 %s = %.4f %s (%s)\n", base, rate, target, result.Provider)
		return nil
	},
}

func init() {
	latestCmd.Flags().String("base", "", "base currency code (e.g., AUD)")
	latestCmd.Flags().String("target", "", "target currency code (e.g., NZD)")
	latestCmd.Flags().String("provider", "", "pin a specific rate provider")
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		log := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		srv := api.NewServer(cfg, registry, log)
		return srv.ListenAndServe(cfg.API.Addr())
	},
}
