package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/kepler-lab/kepler-trading/internal/auditlog"
	"github.com/kepler-lab/kepler-trading/internal/engine"
	"github.com/kepler-lab/kepler-trading/internal/logger"
)

// cycleAction runs a single trading cycle against a fresh paper account:
// it reads the raw model response, processes it for the given asset and
// price, and prints the resulting account snapshot as YAML.
func cycleAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	config := engine.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		config, err = engine.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	rawResponse, err := readResponse(cmd.String("response"))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var recorder engine.Recorder

	if config.AuditPath != "" {
		store, storeErr := auditlog.NewStore(config.AuditPath, log)
		if storeErr != nil {
			return fmt.Errorf("failed to open audit store: %w", storeErr)
		}
		defer store.Close()

		recorder = store
	}

	eng, err := engine.NewEngine(config, engine.NewPaperExecution(), recorder, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	result := eng.ProcessCycle(ctx,
		cmd.String("asset"), rawResponse, cmd.Float("price"), time.Now().UTC())

	output := map[string]any{
		"asset":   result.Asset,
		"stage":   string(result.Stage),
		"applied": result.Applied,
		"account": result.Account,
	}
	if !result.Applied {
		output["reject_code"] = int(result.RejectCode)
		output["reject_reason"] = result.RejectReason
	}

	encoded, err := yaml.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	fmt.Print(string(encoded))

	return nil
}

// readResponse reads the raw model response from a file, or from stdin
// when the path is "-" or empty.
func readResponse(path string) (string, error) {
	if path == "" || path == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}

		return string(content), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return string(content), nil
}

func main() {
	cmd := &cli.Command{
		Name:  "kepler",
		Usage: "Paper trading account engine",
		Commands: []*cli.Command{
			{
				Name:  "cycle",
				Usage: "Process one model response as a trading cycle",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML config file",
					},
					&cli.StringFlag{
						Name:     "asset",
						Aliases:  []string{"a"},
						Usage:    "Asset symbol the cycle was prompted for",
						Required: true,
					},
					&cli.FloatFlag{
						Name:     "price",
						Aliases:  []string{"p"},
						Usage:    "Current price of the asset in USD",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "response",
						Aliases: []string{"r"},
						Usage:   "Path to the raw model response, or - for stdin",
						Value:   "-",
					},
				},
				Action: cycleAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
