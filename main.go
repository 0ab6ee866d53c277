package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fazecat/smarttrader/Internal/handlers"
	"github.com/fazecat/smarttrader/Internal/utils/config"
	"github.com/fazecat/smarttrader/Internal/utils/formatting"
	"github.com/fazecat/smarttrader/Internal/utils/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "smarttrader",
		Short:         "Screen stocks, score them and turn signals into trade recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(
		analyzeCmd(),
		screenCmd(),
		sentimentCmd(),
		recommendCmd(),
		tradeCmd(),
		tradesCmd(),
		positionsCmd(),
		runCmd(),
		configCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withApp loads config, wires the application and hands it to fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *handlers.App, log zerolog.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := handlers.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app, log)
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Full sentiment, technical and fundamental report for one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				report, err := app.Service.Analyze(ctx, args[0])
				if err != nil {
					return err
				}
				formatting.PrintReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func screenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screen [SYMBOL...]",
		Short: "Rank symbols by signal strength (default: configured universe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				results, err := app.Service.Screen(ctx, args)
				if err != nil {
					return err
				}
				formatting.PrintResults(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}
}

func sentimentCmd() *cobra.Command {
	var withNews bool
	cmd := &cobra.Command{
		Use:   "sentiment SYMBOL",
		Short: "Blended news and social sentiment score in [-1, 1]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				out := cmd.OutOrStdout()
				score, err := app.Service.Sentiment(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s sentiment: %+.3f\n", strings.ToUpper(args[0]), score)
				if !withNews {
					return nil
				}
				articles, err := app.Service.News(ctx, args, 5)
				if err != nil {
					return err
				}
				for _, a := range articles {
					fmt.Fprintf(out, "  [%+.2f] %s (%s)\n", a.Sentiment, a.Headline, a.Source)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withNews, "news", false, "also list the scored headlines")
	return cmd
}

func recommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Run one screening cycle and print the resulting recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				recs, err := app.Service.RunCycle(ctx)
				if err != nil {
					return err
				}
				formatting.PrintRecommendations(cmd.OutOrStdout(), recs)
				return nil
			})
		},
	}
}

// recommendations live in memory, so trade runs a fresh cycle and executes
// the ones matching the requested symbols
func tradeCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "trade SYMBOL...",
		Short: "Run a cycle and execute the recommendations for the given symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := make(map[string]bool, len(args))
			for _, a := range args {
				wanted[strings.ToUpper(strings.TrimSpace(a))] = true
			}
			return withApp(cmd, func(ctx context.Context, app *handlers.App, log zerolog.Logger) error {
				out := cmd.OutOrStdout()
				recs, err := app.Service.RunCycle(ctx)
				if err != nil {
					return err
				}

				executed := 0
				for _, rec := range recs {
					if !wanted[rec.Symbol] {
						continue
					}
					if dryRun {
						fmt.Fprintf(out, "would %s %d %s (%s)\n", rec.Action, rec.Quantity, rec.Symbol, strings.Join(rec.Reasons, "; "))
						continue
					}
					trade, err := app.Service.Execute(ctx, rec.ID)
					if err != nil {
						log.Error().Err(err).Str("symbol", rec.Symbol).Msg("execution failed")
						continue
					}
					executed++
					fmt.Fprintf(out, "%s %d %s -> order %s\n", trade.Action, trade.Quantity, trade.Symbol, trade.OrderID)
				}
				if executed == 0 && !dryRun {
					fmt.Fprintln(out, "No recommendations executed.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the orders without placing them")
	return cmd
}

func tradesCmd() *cobra.Command {
	var startRaw, endRaw string
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseFlagDate("start", startRaw, false)
			if err != nil {
				return err
			}
			end, err := parseFlagDate("end", endRaw, true)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				trades, err := app.Service.ExecutedTrades(ctx, start, end)
				if err != nil {
					return err
				}
				formatting.PrintTrades(cmd.OutOrStdout(), trades)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&startRaw, "start", "", "earliest trade date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&endRaw, "end", "", "latest trade date, inclusive")
	return cmd
}

func parseFlagDate(name, raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, ok := formatting.ParseDate(raw)
	if !ok {
		return nil, fmt.Errorf("invalid --%s date %q", name, raw)
	}
	if endOfDay && !strings.Contains(raw, "T") {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show broker positions and total portfolio value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, _ zerolog.Logger) error {
				positions, err := app.Service.Positions(ctx)
				if err != nil {
					return err
				}
				value, err := app.Service.PortfolioValue(ctx)
				if err != nil {
					return err
				}
				formatting.PrintPositions(cmd.OutOrStdout(), positions, value)
				return nil
			})
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the screening loop and scheduled jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *handlers.App, log zerolog.Logger) error {
				log.Info().Msg("press Ctrl+C to stop")
				return <-app.Start(ctx)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default configuration (secrets stay in .env)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
