package translate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const outbreakDoc = `{
	"Use_Defaults": 1,
	"Events": [{
		"class": "CampaignEvent",
		"Start_Day": 365,
		"Nodeset_Config": {"class": "NodeSetAll"},
		"Event_Coordinator_Config": {
			"class": "StandardInterventionDistributionEventCoordinator",
			"Demographic_Coverage": 0.075,
			"Intervention_Config": {"class": "OutbreakIndividual"}
		}
	}]
}`

func TestService_Decode(t *testing.T) {
	s := NewService(registry.Builtin(), nil, testLogger())
	result, err := s.Decode(context.Background(), []byte(outbreakDoc), domain.ModeStrict)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := "1\n365 :: AllPlaces :: 7.5% :: OutbreakIndividual\n"
	if got := string(result.Output); got != want {
		t.Errorf("Decode() output = %q, want %q", got, want)
	}
	if result.Events != 1 {
		t.Errorf("Events = %d, want 1", result.Events)
	}
	if result.Direction != DirectionDecode {
		t.Errorf("Direction = %q, want %q", result.Direction, DirectionDecode)
	}
}

func TestService_Encode(t *testing.T) {
	input := "1\n365 :: AllPlaces :: 7.5% :: OutbreakIndividual\n"
	s := NewService(registry.Builtin(), nil, testLogger())
	result, err := s.Encode(context.Background(), []byte(input), domain.ModeStrict)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(string(result.Output), `"class": "OutbreakIndividual"`) {
		t.Errorf("Encode() output missing intervention:\n%s", result.Output)
	}

	// Translating back must reproduce the input exactly.
	back, err := s.Decode(context.Background(), result.Output, domain.ModeStrict)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := string(back.Output); got != input {
		t.Errorf("round trip = %q, want %q", got, input)
	}
}

func TestService_Encode_UnknownInterventionIsFatal(t *testing.T) {
	input := "1\n1 :: AllPlaces :: 100.0% :: Foo\n"
	s := NewService(registry.Builtin(), nil, testLogger())
	for _, mode := range []domain.Mode{domain.ModeStrict, domain.ModeLenient} {
		if _, err := s.Encode(context.Background(), []byte(input), mode); !domain.IsKind(err, domain.ErrorKindUnknownIntervention) {
			t.Errorf("Encode(%v) error = %v, want unknown intervention", mode, err)
		}
	}
}

func TestService_DecodeFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "campaign.json")
	outPath := filepath.Join(dir, "campaign.ccdl")
	if err := os.WriteFile(inPath, []byte(outbreakDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewService(registry.Builtin(), nil, testLogger())
	if _, err := s.DecodeFile(context.Background(), inPath, outPath, domain.ModeStrict); err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(data), "OutbreakIndividual") {
		t.Errorf("output = %q, want an OutbreakIndividual line", data)
	}
}

func TestService_EncodeFile_FailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "campaign.ccdl")
	outPath := filepath.Join(dir, "campaign.json")
	if err := os.WriteFile(inPath, []byte("1\n1 :: AllPlaces :: 100.0% :: Foo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewService(registry.Builtin(), nil, testLogger())
	if _, err := s.EncodeFile(context.Background(), inPath, outPath, domain.ModeStrict); err == nil {
		t.Fatal("EncodeFile() error = nil, want non-nil")
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("output file exists after a failed translation")
	}
}

func TestService_SetRegistry(t *testing.T) {
	s := NewService(registry.Builtin(), nil, testLogger())
	before := s.Registry().Len()

	reg, err := registry.Parse([]byte(`{
		"idmTypes": {
			"idmAbstractType:Intervention": {
				"idmAbstractType:IndividualIntervention": {
					"OutbreakIndividual": {"class": "OutbreakIndividual"}
				}
			}
		}
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s.SetRegistry(reg)
	if got := s.Registry().Len(); got == before {
		t.Errorf("Len() = %d after swap, want a different registry", got)
	}
	if got := s.Registry().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}
