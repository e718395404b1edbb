package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docforge/convert"
	"github.com/hazyhaar/docforge/fsafe"
	"github.com/hazyhaar/docforge/idgen"
	"github.com/hazyhaar/docforge/journal"
	"github.com/hazyhaar/docforge/kit"
)

const version = "0.1.0"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logger, os.Args[1], os.Args[2:])
	cancel()
	if err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		} else {
			fmt.Fprintf(os.Stderr, "docforge: %v\n", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, logger *slog.Logger, cmd string, args []string) error {
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	switch cmd {
	case "convert":
		return cmdConvert(ctx, cfg, args)
	case "extract":
		return cmdExtract(ctx, cfg, args)
	case "formats":
		return cmdFormats(cfg, args)
	case "history":
		return cmdHistory(ctx, cfg, args)
	case "mcp":
		return cmdMCP(ctx, cfg)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		return errUsage
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `docforge: convert and extract office documents

usage:
  docforge convert <src> <format> [out_dir]
  docforge extract <src> [out.txt]
  docforge formats <src>
  docforge history [limit]
  docforge mcp

convert   Converts <src> to <format>; existing files are never overwritten.
extract   Prints the plain text of <src>, or replaces out.txt with it.
formats   Lists the formats <src> can be converted to.
history   Lists recent conversions from the journal.
mcp       Serves the docforge tools over MCP on stdio.

environment:
  DOCFORGE_CONFIG      YAML config file
  DOCFORGE_OUTPUT_DIR  default output directory
  DOCFORGE_JOURNAL     journal database path (empty disables it)
  LOG_LEVEL            debug, info, warn or error
`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig reads DOCFORGE_CONFIG when set and applies the environment
// overrides on top.
func loadConfig(logger *slog.Logger) (*convert.Config, error) {
	cfg := convert.DefaultConfig()
	if path := os.Getenv("DOCFORGE_CONFIG"); path != "" {
		var err error
		if cfg, err = convert.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.OutputDir = env("DOCFORGE_OUTPUT_DIR", cfg.OutputDir)
	cfg.JournalPath = env("DOCFORGE_JOURNAL", cfg.JournalPath)
	cfg.Logger = logger
	return cfg, nil
}

// openConverter builds the converter and, when configured, its journal.
// The returned func closes the journal.
func openConverter(cfg *convert.Config) (*convert.Converter, func(), error) {
	var opts []convert.Option
	closeFn := func() {}
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, convert.WithJournal(store))
		closeFn = func() { store.Close() }
	}
	conv, err := convert.New(cfg, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return conv, closeFn, nil
}

func cmdConvert(ctx context.Context, cfg *convert.Config, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "convert requires a source and a format")
		return errUsage
	}
	conv, closeFn, err := openConverter(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	req := convert.Request{Source: args[0], Target: args[1]}
	if len(args) >= 3 {
		req.OutDir = args[2]
	}

	endpoint := kit.Chain(
		kit.RequestID(idgen.Request),
		kit.Recovery(cfg.Logger),
		kit.Logging(cfg.Logger, "convert"),
	)(func(ctx context.Context, r any) (any, error) {
		return conv.Convert(ctx, r.(convert.Request))
	})

	resp, err := endpoint(kit.WithTransport(ctx, "cli"), req)
	if err != nil {
		return err
	}
	res := resp.(*convert.Result)
	fmt.Println(res.Dest)
	if res.Quality != nil && res.Quality.NeedsOCR() {
		fmt.Fprintln(os.Stderr, "warning: the PDF text layer looks unreliable (scanned document?)")
	}
	return nil
}

func cmdExtract(ctx context.Context, cfg *convert.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "extract requires a source")
		return errUsage
	}
	conv, err := convert.New(cfg)
	if err != nil {
		return err
	}
	doc, err := conv.Pipeline().Extract(ctx, args[0])
	if err != nil {
		return err
	}
	if len(args) < 2 {
		fmt.Println(doc.Text())
		return nil
	}
	return fsafe.WriteFileAtomic(args[1], []byte(doc.Text()+"\n"), 0o644)
}

func cmdFormats(cfg *convert.Config, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "formats requires a source")
		return errUsage
	}
	conv, err := convert.New(cfg)
	if err != nil {
		return err
	}
	format, targets, err := conv.Formats(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", format, strings.Join(targets, " "))
	return nil
}

func cmdHistory(ctx context.Context, cfg *convert.Config, args []string) error {
	if cfg.JournalPath == "" {
		return errors.New("journal disabled: set DOCFORGE_JOURNAL or journal_path")
	}
	limit := 20
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(os.Stderr, "limit must be a positive integer")
			return errUsage
		}
		limit = n
	}

	store, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tID\tSTATUS\tSOURCE\tRESULT")
	for _, e := range entries {
		status, result := "ok", e.Dest
		if !e.OK() {
			status, result = "failed:"+e.Stage, e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.ID, status, e.Source, result)
	}
	return tw.Flush()
}

func cmdMCP(ctx context.Context, cfg *convert.Config) error {
	conv, closeFn, err := openConverter(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := mcp.NewServer(&mcp.Implementation{Name: "docforge", Version: version}, nil)
	conv.RegisterMCP(srv)

	cfg.Logger.Info("mcp server on stdio", "version", version)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
