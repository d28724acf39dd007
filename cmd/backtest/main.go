package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marketloop/skinsim/internal/engine"
	"github.com/marketloop/skinsim/internal/engine/datasource"
	"github.com/marketloop/skinsim/internal/engine/features"
	"github.com/marketloop/skinsim/internal/engine/writers"
	"github.com/marketloop/skinsim/internal/logger"
)

// runAction loads the quote table, runs the simulation over the
// configured window and writes the result artifacts.
func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	config := engine.DefaultConfig()

	if configPath := cmd.String("config"); configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		config, err = engine.ParseConfig(content)
		if err != nil {
			return err
		}
	}

	if cmd.IsSet("seed") {
		config.Seed = cmd.Int("seed")
	}

	if cmd.IsSet("start") {
		config.StartDate = optional.Some(cmd.Timestamp("start"))
	}

	if cmd.IsSet("end") {
		config.EndDate = optional.Some(cmd.Timestamp("end"))
	}

	table, err := loadTable(cmd.String("data"), config, log)
	if err != nil {
		return err
	}

	state := optional.None[engine.State]()

	if statePath := cmd.String("state"); statePath != "" {
		blob, err := engine.ReadStateFile(statePath)
		if err != nil {
			return err
		}

		log.Info("Hot-starting from state", zap.String("path", statePath))
		state = optional.Some(blob)
	}

	result, err := runOnce(config, state, table, log)
	if err != nil {
		return err
	}

	return writeResults(cmd.String("results"), result, log)
}

// trainTestAction runs the learning window first, then replays a later
// window hot-started from the learned state.
func trainTestAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	config := engine.DefaultConfig()

	if configPath := cmd.String("config"); configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		config, err = engine.ParseConfig(content)
		if err != nil {
			return err
		}
	}

	if cmd.IsSet("seed") {
		config.Seed = cmd.Int("seed")
	}

	split := cmd.Timestamp("split")

	table, err := loadTable(cmd.String("data"), config, log)
	if err != nil {
		return err
	}

	trainConfig := config
	trainConfig.EndDate = optional.Some(split.AddDate(0, 0, -1))

	log.Info("Running training window", zap.Time("until", split))

	trainResult, err := runOnce(trainConfig, optional.None[engine.State](), table, log)
	if err != nil {
		return err
	}

	resultsDir := cmd.String("results")
	if err := writeResults(filepath.Join(resultsDir, "train"), trainResult, log); err != nil {
		return err
	}

	testConfig := config
	testConfig.StartDate = optional.Some(split)

	log.Info("Running test window", zap.Time("from", split))

	testResult, err := runOnce(testConfig, optional.Some(trainResult.State), table, log)
	if err != nil {
		return err
	}

	return writeResults(filepath.Join(resultsDir, "test"), testResult, log)
}

func newLogger(cmd *cli.Command) (*logger.Logger, error) {
	level, err := zapcore.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return logger.NewLoggerWithLevel(level)
}

func loadTable(dataPath string, config engine.Config, log *logger.Logger) (*features.Table, error) {
	source, err := datasource.NewDataSource(config.Features.Venues, log)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return nil, err
	}

	observations, err := source.ReadAll()
	if err != nil {
		return nil, err
	}

	return features.Build(observations, config.Features, log), nil
}

func runOnce(config engine.Config, state optional.Option[engine.State], table *features.Table, log *logger.Logger) (engine.Result, error) {
	eng, err := engine.NewEngine(config, state, log)
	if err != nil {
		return engine.Result{}, err
	}

	var bar *progressbar.ProgressBar

	eng.SetProgressCallback(func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Simulating"),
				progressbar.OptionShowCount())
		}

		_ = bar.Set(done)
	})

	return eng.Run(table)
}

func writeResults(dir string, result engine.Result, log *logger.Logger) error {
	if err := writers.NewTradesWriter(filepath.Join(dir, "trades.csv")).Write(result.Trades); err != nil {
		return err
	}

	if err := writers.NewEquityWriter(filepath.Join(dir, "equity.csv")).Write(result.Equity); err != nil {
		return err
	}

	if err := writers.WriteSummary(filepath.Join(dir, "summary.yaml"), result.Summary); err != nil {
		return err
	}

	if err := engine.WriteStateFile(filepath.Join(dir, "state.json"), result.State); err != nil {
		return err
	}

	log.Info("Results written",
		zap.String("dir", dir),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("final_equity", result.Summary.FinalEquity))

	return nil
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to the quote table CSV",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML config; defaults apply when omitted",
		},
		&cli.StringFlag{
			Name:    "results",
			Aliases: []string{"r"},
			Usage:   "Directory for the result artifacts",
			Value:   "results",
		},
		&cli.IntFlag{
			Name:  "seed",
			Usage: "Override the exploration RNG seed",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
			Value: "info",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "skinsim",
		Usage: "Adaptive backtest engine for cross-marketplace item trading",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a single simulation window",
				Flags: append(commonFlags(),
					&cli.TimestampFlag{
						Name:  "start",
						Usage: "First simulated day in `YYYY-MM-DD` format",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.TimestampFlag{
						Name:  "end",
						Usage: "Last simulated day in `YYYY-MM-DD` format",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.StringFlag{
						Name:  "state",
						Usage: "Path to a state blob to hot-start from",
					}),
				Action: runAction,
			},
			{
				Name:  "traintest",
				Usage: "Train on the days before the split, then replay the rest hot-started",
				Flags: append(commonFlags(),
					&cli.TimestampFlag{
						Name:     "split",
						Usage:    "First day of the test window in `YYYY-MM-DD` format",
						Required: true,
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					}),
				Action: trainTestAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the config file",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					config := engine.DefaultConfig()

					schema, err := config.GenerateSchemaJSON()
					if err != nil {
						return err
					}

					fmt.Println(schema)

					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
