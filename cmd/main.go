package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"promptbench/internal/api"
	"promptbench/internal/benchmark"
	"promptbench/internal/report"
)

const exitNoSuccessfulRuns = 2

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// validateFlags rejects a run before any remote call is made
func validateFlags(promptFile string, runs int, format string) error {
	if promptFile == "" {
		return errors.New("--prompt-file is required")
	}
	if runs < 1 || runs > benchmark.MaxRuns {
		return fmt.Errorf("--runs must be between 1 and %d, got %d", benchmark.MaxRuns, runs)
	}
	if !validFormat(format) {
		return fmt.Errorf("invalid format %q, expected table, json or yaml", format)
	}
	return nil
}

func main() {
	promptFile := pflag.StringP("prompt-file", "p", "", "File with one prompt per line (required)")
	model := pflag.StringP("model", "m", "deepseek/deepseek-chat-v3.1:free", "Model to benchmark")
	runs := pflag.IntP("runs", "r", 5, "Number of runs per prompt")
	parallel := pflag.IntP("parallel", "c", benchmark.DefaultConcurrency, "Maximum number of calls in flight per wave")
	maxTokens := pflag.IntP("max-tokens", "t", benchmark.DefaultMaxTokens, "Maximum number of tokens to generate per call")
	timeout := pflag.Duration("timeout", benchmark.DefaultTimeout, "Timeout for each call")
	baseURL := pflag.StringP("base-url", "u", envOr("OPENROUTER_BASE_URL", api.DefaultBaseURL), "Base URL of the OpenRouter API")
	apiKey := pflag.StringP("api-key", "k", os.Getenv("OPENROUTER_API_KEY"), "API key for authentication (default $OPENROUTER_API_KEY)")
	format := pflag.StringP("format", "f", "table", "Output format: table, json or yaml")
	resultsDir := pflag.String("results-dir", envOr("RESULTS_DIR", report.DefaultResultsDir), "Directory for "+report.ResultsFileName)
	checkModel := pflag.Bool("check-model", true, "Verify the model against the model catalog before running")
	freeOnly := pflag.Bool("free-only", true, "Only accept models with zero pricing when checking the model")
	help := pflag.BoolP("help", "h", false, "Show this help message")
	insecureSkipTLSVerify := pflag.Bool("insecure-skip-tls-verify", false, "Skip TLS certificate verification. Use with caution, this is insecure.")
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *help {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(0)
	}

	if err := validateFlags(*promptFile, *runs, *format); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	b := Benchmark{
		BaseURL:    strings.TrimRight(*baseURL, "/"),
		ApiKey:     strings.TrimSpace(*apiKey),
		ModelName:  *model,
		PromptFile: *promptFile,
		Runs:       *runs,
		Options: benchmark.Options{
			Concurrency: *parallel,
			MaxTokens:   *maxTokens,
			Timeout:     *timeout,
		},
		ResultsDir: *resultsDir,
		CheckModel: *checkModel,
		FreeOnly:   *freeOnly,
	}

	if *insecureSkipTLSVerify {
		fmt.Fprintln(os.Stderr, "\n/!\\ WARNING: Skipping TLS certificate verification. This is insecure and should not be used in production. /!\\")

		// Clone the default Transport to preserve its settings
		defaultTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			log.Fatalf("http.DefaultTransport is not an *http.Transport")
		}
		tr := defaultTransport.Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		b.HTTPClient = &http.Client{Transport: tr}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, rep, err := b.run(ctx)
	if err != nil {
		stop()
		if errors.Is(err, benchmark.ErrInvalidInput) || errors.Is(err, benchmark.ErrConfiguration) {
			log.Fatalf("Invalid benchmark: %v", err)
		}
		log.Fatalf("Error running benchmark: %v", err)
	}

	if err := writeReport(os.Stdout, rep, result, *format); err != nil {
		stop()
		log.Fatalf("%v", err)
	}

	if rep.NoSuccessfulRuns() {
		stop()
		os.Exit(exitNoSuccessfulRuns)
	}
}
