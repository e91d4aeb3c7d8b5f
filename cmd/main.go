package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/dkoval/ragbox/pkg/config"
	"github.com/dkoval/ragbox/pkg/rag"
	"github.com/dkoval/ragbox/server"
)

func main() {
	// Missing .env is fine, the config layer falls back to defaults.
	_ = godotenv.Load()

	var (
		configPath string
		serve      bool
		addr       string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP server instead of the interactive CLI")
	flag.StringVar(&addr, "addr", ":8080", "HTTP listen address (with -serve)")
	flag.Usage = usage
	flag.Parse()

	if err := run(configPath, serve, addr, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: ragbox [flags] <command> [args]

Commands:
  ingest <file>...     Parse, chunk and index local documents
  ingest-url <url>     Fetch one page and index its text
  ask <question>       Answer a question from the indexed documents
  chat                 Interactive question loop
  status               Show whether an index exists and its record count
  clear                Drop the index and staged uploads

Flags:
`)
	flag.PrintDefaults()
}

func run(configPath string, serve bool, addr string, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid config (%d error(s))", len(errs))
	}

	ctx := context.Background()
	engine, err := rag.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	if serve {
		return server.New(engine, server.Config{}).ListenAndServe(addr)
	}

	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "ingest":
		return runIngest(ctx, engine, rest)
	case "ingest-url":
		return runIngestURL(ctx, engine, rest)
	case "ask":
		return runAsk(ctx, engine, strings.Join(rest, " "))
	case "chat":
		return runChat(ctx, engine)
	case "status":
		return runStatus(ctx, engine)
	case "clear":
		return runClear(ctx, engine)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runIngest(ctx context.Context, engine *rag.Engine, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("ingest: at least one file is required")
	}

	bar := getSpinner(fmt.Sprintf("Indexing %d file(s)...", len(paths)))
	total, err := engine.IngestFiles(ctx, paths)
	bar.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	color.Green("Index now holds %d record(s)\n", total)
	return nil
}

func runIngestURL(ctx context.Context, engine *rag.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("ingest-url: exactly one URL is required")
	}

	bar := getSpinner(fmt.Sprintf("Fetching %s...", args[0]))
	total, err := engine.IngestURL(ctx, args[0])
	bar.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	color.Green("Index now holds %d record(s)\n", total)
	return nil
}

func runAsk(ctx context.Context, engine *rag.Engine, question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("ask: a question is required")
	}

	bar := getSpinner("Generating answer...")
	answer, err := engine.Ask(ctx, question)
	bar.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	color.Cyan("%s\n", answer)
	return nil
}

func runChat(ctx context.Context, engine *rag.Engine) error {
	color.Cyan("Ask questions about your indexed documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		bar := getSpinner("Generating answer...")
		answer, err := engine.Ask(ctx, question)
		bar.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		assistantPrompt("Assistant: %s\n", answer)
	}

	return scanner.Err()
}

func runStatus(ctx context.Context, engine *rag.Engine) error {
	status, err := engine.Status(ctx)
	if err != nil {
		return err
	}

	switch {
	case !status.Exists:
		color.Yellow("No index yet. Run 'ragbox ingest' first.\n")
	case status.Corrupt:
		color.Red("Index exists but is unreadable. The next ingest will recreate it.\n")
	default:
		color.Green("Index holds %d record(s)\n", status.Records)
	}
	return nil
}

func runClear(ctx context.Context, engine *rag.Engine) error {
	if err := engine.Clear(ctx); err != nil {
		return err
	}
	color.Green("Index and staged uploads cleared\n")
	return nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
