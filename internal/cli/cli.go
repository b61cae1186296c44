// Package cli dispatches the fwfr command-line subcommands: load a YAML
// option file, read one or more fixed-width files into tables, print a
// schema summary, and optionally publish a per-file ingest summary to
// Redis for a job dashboard to poll.
package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/time/rate"

	"fwfr/internal/logging"
	"fwfr/internal/options"
	"fwfr/internal/reader"
	"fwfr/internal/summary"
)

// Execute dispatches CLI subcommands.
func Execute(args []string) int {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[fwfr] ")

	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "read":
		return runRead(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "version", "--version", "-v":
		fmt.Println("fwfr 0.1.0-dev")
		return 0
	default:
		log.Printf("Unknown subcommand: %s", args[0])
		printUsage()
		return 1
	}
}

func runRead(args []string) int {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	var configPath string
	var redisAddr string
	var redisKey string
	var rateLimit int
	var logDir string
	fs.StringVar(&configPath, "config", "", "Option file path (YAML)")
	fs.StringVar(&configPath, "c", "", "Option file path (YAML)")
	fs.StringVar(&redisAddr, "redis", "", "Redis address to publish ingest summaries to (e.g. localhost:6379)")
	fs.StringVar(&redisKey, "redis-key", "fwfr:ingest", "Key prefix for published summaries")
	fs.IntVar(&rateLimit, "rate-limit", 0, "Read throughput cap in bytes/sec (0 = unlimited)")
	fs.StringVar(&logDir, "log-dir", "logs", "Directory for the fwfr log file")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		log.Printf("Failed to parse arguments: %v", err)
		return 1
	}
	if configPath == "" {
		log.Println("The --config flag is required")
		fs.Usage()
		return 2
	}

	if err := logging.Open(logDir, "fwfr", logging.LevelInfo); err != nil {
		log.Printf("Failed to open log file: %v", err)
		return 1
	}
	defer logging.Close()

	parse, convert, read, inputs, err := options.LoadYAML(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 2
	}
	inputs = append(inputs, fs.Args()...)
	if len(inputs) == 0 {
		log.Println("No inputs: list them under `inputs:` in the config or pass them as arguments")
		return 2
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}

	var publisher *summary.Publisher
	if redisAddr != "" {
		publisher = summary.NewPublisher(redisAddr, redisKey)
		defer publisher.Close()
	}

	opts := reader.Options{Parse: parse, Convert: convert, Read: read}
	failed := 0
	for _, input := range inputs {
		if err := readOne(input, opts, limiter, publisher); err != nil {
			log.Printf("❌ %s: %v", input, err)
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func readOne(path string, opts reader.Options, limiter *rate.Limiter, publisher *summary.Publisher) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	tbl, err := reader.ReadWithLimiter(f, opts, limiter)
	elapsed := time.Since(start)
	if err != nil {
		if publisher != nil {
			publisher.PublishFailure(path, elapsed, err)
		}
		return err
	}

	printSummary(path, tbl, elapsed)
	if publisher != nil {
		if perr := publisher.Publish(path, tbl, elapsed); perr != nil {
			logging.Event(logging.LevelWarn, "publish", "summary for %s: %v", path, perr)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println(`fwfr - fixed-width file reader

Usage:
  fwfr read --config <options.yaml> [flags] [input ...]
  fwfr version
  fwfr help

Read flags:
  --config, -c   Option file path (YAML), required
  --redis        Publish per-file ingest summaries to this Redis address
  --redis-key    Key prefix for published summaries (default fwfr:ingest)
  --rate-limit   Read throughput cap in bytes/sec (0 = unlimited)
  --log-dir      Directory for the fwfr log file (default logs)`)
}
