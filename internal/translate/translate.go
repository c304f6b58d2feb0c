// Package translate is the application service behind both the CLI and the
// HTTP server: it turns campaign documents into CCDL text and back, applying
// the strictness policy and reporting what happened.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/epiforge/ccdl/internal/codec/campaign"
	"github.com/epiforge/ccdl/internal/codec/ccdl"
	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
)

// Direction names a translation direction for logging and run records.
type Direction string

const (
	// DirectionDecode is campaign JSON to CCDL.
	DirectionDecode Direction = "decode"

	// DirectionEncode is CCDL to campaign JSON.
	DirectionEncode Direction = "encode"
)

// Result summarizes one completed translation.
type Result struct {
	Direction Direction
	Events    int
	Warnings  []string
	Output    []byte
	Duration  time.Duration
}

// Service performs translations with a shared registry and event map. The
// registry pointer is swappable at runtime so schema hot-reload does not
// interrupt in-flight requests.
type Service struct {
	registry atomic.Pointer[registry.Registry]
	eventMap map[string]string
	workers  int
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a translation service. eventMap may be nil.
func NewService(reg *registry.Registry, eventMap map[string]string, logger *slog.Logger) *Service {
	s := &Service{
		eventMap: eventMap,
		logger:   logger,
		tracer:   otel.Tracer("ccdl/translate"),
	}
	s.registry.Store(reg)
	return s
}

// WithWorkers sets the goroutine fan-out used when decoding large campaign
// documents. Values below 2 keep decoding sequential.
func (s *Service) WithWorkers(n int) *Service {
	s.workers = n
	return s
}

// SetRegistry swaps the registry, typically after a schema reload.
func (s *Service) SetRegistry(reg *registry.Registry) {
	s.registry.Store(reg)
	s.logger.Info("registry swapped", slog.Int("interventions", reg.Len()))
}

// Registry returns the registry currently in use.
func (s *Service) Registry() *registry.Registry {
	return s.registry.Load()
}

// Decode translates a campaign JSON document into CCDL text. Under
// ModeStrict any unsupported event fails the whole run; under ModeLenient
// such events are skipped and reported as warnings.
func (s *Service) Decode(ctx context.Context, data []byte, mode domain.Mode) (*Result, error) {
	_, span := s.tracer.Start(ctx, "translate.decode")
	defer span.End()
	start := time.Now()

	dec := campaign.NewDecoder(s.registry.Load(), s.eventMap).WithWorkers(s.workers)
	events, diags := dec.Decode(data, mode)
	if err := diags.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	renderer := ccdl.New()
	out, err := renderer.Encode(events)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := s.finish(DirectionDecode, events, diags, out, start)
	span.SetAttributes(
		attribute.Int("events", result.Events),
		attribute.Int("warnings", len(result.Warnings)),
		attribute.String("mode", mode.String()),
	)
	return result, nil
}

// Encode translates CCDL text into a campaign JSON document. The line
// grammar honors the strictness mode, but an intervention name missing from
// the registry is fatal in either mode: encoding must never guess a class.
func (s *Service) Encode(ctx context.Context, data []byte, mode domain.Mode) (*Result, error) {
	_, span := s.tracer.Start(ctx, "translate.encode")
	defer span.End()
	start := time.Now()

	parser := ccdl.New()
	events, diags := parser.Decode(data, mode)
	if err := diags.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	enc := campaign.NewEncoder(s.registry.Load())
	out, err := enc.Encode(events)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := s.finish(DirectionEncode, events, diags, out, start)
	span.SetAttributes(
		attribute.Int("events", result.Events),
		attribute.Int("warnings", len(result.Warnings)),
		attribute.String("mode", mode.String()),
	)
	return result, nil
}

// DecodeFile reads a campaign document, decodes it, and writes CCDL text to
// outPath. Nothing is written when the translation fails.
func (s *Service) DecodeFile(ctx context.Context, inPath, outPath string, mode domain.Mode) (*Result, error) {
	return s.translateFile(ctx, inPath, outPath, mode, s.Decode)
}

// EncodeFile reads CCDL text, encodes it, and writes a campaign document to
// outPath. Nothing is written when the translation fails.
func (s *Service) EncodeFile(ctx context.Context, inPath, outPath string, mode domain.Mode) (*Result, error) {
	return s.translateFile(ctx, inPath, outPath, mode, s.Encode)
}

func (s *Service) translateFile(
	ctx context.Context,
	inPath, outPath string,
	mode domain.Mode,
	run func(context.Context, []byte, domain.Mode) (*Result, error),
) (*Result, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inPath, err)
	}
	result, err := run(ctx, data, mode)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, result.Output, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", outPath, err)
	}
	return result, nil
}

func (s *Service) finish(dir Direction, events []domain.CampaignEvent, diags *domain.Diagnostics, out []byte, start time.Time) *Result {
	result := &Result{
		Direction: dir,
		Events:    len(events),
		Output:    out,
		Duration:  time.Since(start),
	}
	for _, w := range diags.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
		s.logger.Warn("translation warning",
			slog.String("direction", string(dir)),
			slog.String("warning", w.Error()))
	}
	s.logger.Info("translation complete",
		slog.String("direction", string(dir)),
		slog.Int("events", result.Events),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("duration", result.Duration))
	return result
}
