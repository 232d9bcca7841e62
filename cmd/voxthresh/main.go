package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voxthresh/internal/logger"
	"voxthresh/pkg/batch"
	"voxthresh/pkg/config"
	"voxthresh/pkg/report"
	"voxthresh/pkg/threshold"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one batch and returns the process exit code: 0 on success,
// 1 when the run could not complete and 2 when some stacks failed.
func run(args []string) int {
	fs := flag.NewFlagSet("voxthresh", flag.ContinueOnError)

	// Parse command line arguments
	inputDir := fs.String("input", "", "Directory of slice stacks (or a single stack directory)")
	outputFile := fs.String("output", "", "Results CSV (FileName,OptimalThreshold); overrides output.results")
	configPath := fs.String("config", "", "YAML configuration file")
	createConfig := fs.String("create-config", "", "Write a default configuration file to this path and exit")
	method := fs.String("method", "", "Threshold method: "+strings.Join(threshold.Methods(), ", "))
	minT := fs.Float64("min", -1, "First candidate threshold (default from config)")
	maxT := fs.Float64("max", -1, "Last candidate threshold (default from config)")
	delta := fs.Float64("delta", 0, "Candidate step (default from config)")
	greedy := fs.Float64("greedy", -1, "Percentage subtracted from the EGT percentile (default from config)")
	workers := fs.Int("workers", 0, "Concurrent workers (default from config)")
	traceDir := fs.String("trace-dir", "", "Directory for per-stack trace CSV files")
	plotDir := fs.String("plot-dir", "", "Directory for per-stack score plots")
	maskDir := fs.String("mask-dir", "", "Directory for binarised mask slices")
	cellMask := fs.String("cell-mask", "", "Directory of mask stacks restricting each input stack")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	jsonLogs := fs.Bool("json", false, "Log JSON lines instead of console output")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *createConfig != "" {
		if err := config.CreateDefaultConfigFile(*createConfig); err != nil {
			log.Printf("Failed to create config file: %v", err)
			return 1
		}
		fmt.Printf("Default configuration written to %s\n", *createConfig)
		return 0
	}

	if *inputDir == "" {
		fs.Usage()
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	// Command line flags win over the file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Results = *outputFile
		case "method":
			cfg.Threshold.Method = *method
		case "min":
			cfg.Threshold.Min = *minT
		case "max":
			cfg.Threshold.Max = *maxT
		case "delta":
			cfg.Threshold.Delta = *delta
		case "greedy":
			cfg.Threshold.Greedy = *greedy
		case "workers":
			cfg.Threshold.Workers = *workers
		case "trace-dir":
			cfg.Output.TraceDir = *traceDir
		case "plot-dir":
			cfg.Output.PlotDir = *plotDir
		case "mask-dir":
			cfg.Output.MaskDir = *maskDir
		case "cell-mask":
			cfg.Input.MaskDir = *cellMask
		case "verbose":
			cfg.Output.Verbose = *verbose
		case "json":
			cfg.Output.JSONLogs = *jsonLogs
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	lg := logger.New(cfg.Output.JSONLogs, cfg.Output.Verbose)

	runner, err := batch.NewRunner(cfg, lg)
	if err != nil {
		log.Printf("Failed to set up threshold search: %v", err)
		return 1
	}

	results, err := report.CreateResultsFile(cfg.Output.Results)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	summary, runErr := runner.Run(ctx, *inputDir, results)
	if err := results.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		lg.With("run", runner.RunID()).Error("main", runErr, nil)
		return 1
	}

	fmt.Printf("\nProcessed %d stacks (%d failed) with %s in %.2f seconds\n",
		summary.Processed, summary.Failed, cfg.Threshold.Method, time.Since(startTime).Seconds())
	fmt.Printf("Results saved to: %s\n", cfg.Output.Results)
	if summary.Failed > 0 {
		return 2
	}
	return 0
}
