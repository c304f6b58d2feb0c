// Command ccdl translates disease-simulation campaign files between the
// engine's JSON representation and CCDL text, and renders signal-wiring
// graphs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/epiforge/ccdl/internal/codec/campaign"
	ccdlcodec "github.com/epiforge/ccdl/internal/codec/ccdl"
	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
	"github.com/epiforge/ccdl/internal/telemetry"
	"github.com/epiforge/ccdl/internal/translate"
	"github.com/epiforge/ccdl/internal/viz"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	shutdown, err := telemetry.Init("ccdl", logger)
	if err != nil {
		logger.Error("initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdown(context.Background())

	switch os.Args[1] {
	case "decode":
		err = runDecode(logger, os.Stdout, os.Args[2:])
	case "encode":
		err = runEncode(logger, os.Stdout, os.Args[2:])
	case "viz":
		err = runViz(os.Stdout, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ccdl <decode|encode|viz> [flags]")
	fmt.Fprintln(os.Stderr, "  decode -campaign <campaign.json> [-config <config.json>]")
	fmt.Fprintln(os.Stderr, "          campaign JSON -> CCDL text on stdout")
	fmt.Fprintln(os.Stderr, "  encode [flags] <file.ccdl> [schema.json]")
	fmt.Fprintln(os.Stderr, "          CCDL text -> campaign JSON")
	fmt.Fprintln(os.Stderr, "  viz [flags] <file.ccdl>")
	fmt.Fprintln(os.Stderr, "          CCDL text -> Graphviz DOT on stdout")
}

func runDecode(logger *slog.Logger, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	campaignPath := fs.String("campaign", "", "campaign.json to translate (required)")
	configPath := fs.String("config", "", "config.json whose Event_Map renames signals")
	schemaPath := fs.String("schema", "", "engine schema.json for the intervention registry")
	out := fs.String("o", "", "output CCDL file (default stdout)")
	strict := fs.Bool("strict", false, "fail on any unsupported construct")
	modeName := fs.String("mode", "", "strict or lenient (default lenient)")
	workers := fs.Int("workers", 0, "goroutine fan-out for decoding large documents")
	fs.Parse(args)

	if *campaignPath == "" {
		return fmt.Errorf("-campaign is required")
	}
	mode, err := resolveMode(*modeName, *strict, domain.ModeLenient)
	if err != nil {
		return err
	}
	svc, err := newService(logger, *schemaPath, *configPath, *workers)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *out != "" {
		_, err = svc.DecodeFile(ctx, *campaignPath, *out, mode)
		return err
	}
	data, err := os.ReadFile(*campaignPath)
	if err != nil {
		return err
	}
	result, err := svc.Decode(ctx, data, mode)
	if err != nil {
		return err
	}
	_, err = stdout.Write(result.Output)
	return err
}

func runEncode(logger *slog.Logger, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	out := fs.String("o", "", "output campaign.json (default stdout)")
	strict := fs.Bool("strict", false, "fail on any unsupported construct")
	modeName := fs.String("mode", "", "strict or lenient (default strict)")
	fs.Parse(args)

	in := fs.Arg(0)
	if in == "" {
		return fmt.Errorf("usage: ccdl encode [flags] <file.ccdl> [schema.json]")
	}
	mode, err := resolveMode(*modeName, *strict, domain.ModeStrict)
	if err != nil {
		return err
	}
	svc, err := newService(logger, fs.Arg(1), "", 0)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *out != "" {
		_, err = svc.EncodeFile(ctx, in, *out, mode)
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	result, err := svc.Encode(ctx, data, mode)
	if err != nil {
		return err
	}
	_, err = stdout.Write(result.Output)
	return err
}

func runViz(stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("viz", flag.ExitOnError)
	out := fs.String("o", "", "DOT output file (default stdout)")
	schemaPath := fs.String("schema", "", "engine schema.json for the intervention registry")
	modeName := fs.String("mode", "", "strict or lenient (default strict)")
	fs.Parse(args)

	in := fs.Arg(0)
	if in == "" {
		return fmt.Errorf("usage: ccdl viz [flags] <file.ccdl>")
	}
	mode, err := resolveMode(*modeName, false, domain.ModeStrict)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(*schemaPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	events, diags := ccdlcodec.New().Decode(data, mode)
	if err := diags.Err(); err != nil {
		return err
	}
	dot := viz.New(reg).Dot(events)

	if *out == "" {
		_, err = io.WriteString(stdout, dot)
		return err
	}
	return os.WriteFile(*out, []byte(dot), 0o644)
}

// resolveMode picks the translation mode: -strict wins, then -mode, then the
// subcommand's default.
func resolveMode(modeName string, strict bool, fallback domain.Mode) (domain.Mode, error) {
	if strict {
		return domain.ModeStrict, nil
	}
	if modeName == "" {
		return fallback, nil
	}
	return domain.ParseMode(modeName)
}

func newService(logger *slog.Logger, schemaPath, configPath string, workers int) (*translate.Service, error) {
	reg, err := loadRegistry(schemaPath)
	if err != nil {
		return nil, err
	}
	var eventMap map[string]string
	if configPath != "" {
		if eventMap, err = campaign.LoadEventMap(configPath); err != nil {
			return nil, err
		}
	}
	return translate.NewService(reg, eventMap, logger).WithWorkers(workers), nil
}

// loadRegistry builds the intervention registry: from the schema when a path
// is given, from the built-in table otherwise.
func loadRegistry(schemaPath string) (*registry.Registry, error) {
	if schemaPath == "" {
		return registry.Builtin(), nil
	}
	return registry.Load(schemaPath)
}
