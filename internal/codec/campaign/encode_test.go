package campaign

import (
	"errors"
	"strings"
	"testing"

	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/grammar"
	"github.com/epiforge/ccdl/internal/registry"
)

func TestEncoder_Name(t *testing.T) {
	e := NewEncoder(registry.Builtin())
	if got := e.Name(); got != "campaign-json" {
		t.Errorf("Name() = %q, want %q", got, "campaign-json")
	}
}

func mustParseLine(t *testing.T, line string) domain.CampaignEvent {
	t.Helper()
	event, err := grammar.ParseLine(line, 1)
	if err != nil {
		t.Fatalf("ParseLine(%q) error = %v", line, err)
	}
	return *event
}

// Encoding then decoding a canonical line must reproduce it exactly.
func TestEncodeDecode_RoundTrip(t *testing.T) {
	lines := []string{
		"365 :: AllPlaces :: 7.5% :: OutbreakIndividual",
		"10(x3/_30) :: [5,7] :: 50.0%/Female/>5475/<17885/Risk=High :: BroadcastEvent(Start_Treatment)",
		"1-101 :: AllPlaces :: 100.0% :: NewInfectionEvent->DelayedIntervention(GAUSSIAN/30/5)=>BroadcastEvent(GotTested)",
		"5 :: AllPlaces :: 100.0% :: OutbreakIndividual+PropertyValueChanger(Risk:Low)",
		"30 :: AllPlaces :: 100.0% :: HIVRandomChoice{GetTested: 0.3, Ignore: 0.7}",
		"7 :: [3] :: 25.0%/Male :: Births+HappyBirthday->SimpleHealthSeekingBehavior(GetTested/0.5)",
		"1 :: AllPlaces :: 100.0% :: NewInfectionEvent->BroadcastEvent(Seed)+DelayedIntervention(UNIFORM/7/14)=>PMTCT(0.9)",
	}

	reg := registry.Builtin()
	enc := NewEncoder(reg)
	dec := NewDecoder(reg, nil)
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			event := mustParseLine(t, line)
			data, err := enc.Encode([]domain.CampaignEvent{event})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			events, diags := dec.Decode(data, domain.ModeStrict)
			if diags.HasErrors() {
				t.Fatalf("Decode() errors = %v", diags.Err())
			}
			if len(events) != 1 {
				t.Fatalf("Decode() produced %d events, want 1", len(events))
			}
			if got := grammar.RenderEvent(&events[0]); got != line {
				t.Errorf("round trip = %q, want %q", got, line)
			}
		})
	}
}

func TestEncoder_UnknownIntervention(t *testing.T) {
	event := mustParseLine(t, "1 :: AllPlaces :: 100.0% :: Foo")

	enc := NewEncoder(registry.Builtin())
	data, err := enc.Encode([]domain.CampaignEvent{event})
	if data != nil {
		t.Error("Encode() produced output despite the unknown intervention")
	}
	if !domain.IsKind(err, domain.ErrorKindUnknownIntervention) {
		t.Fatalf("Encode() error = %v, want unknown intervention", err)
	}
	var terr *domain.TranslationError
	if !errors.As(err, &terr) || terr.Event != 0 {
		t.Errorf("Encode() error carries event %v, want 0", terr)
	}
}

func TestEncoder_SteeredIsUnsupported(t *testing.T) {
	event := mustParseLine(t, "90 :: AllPlaces :: STEERED :: PMTCT(0.9)")

	enc := NewEncoder(registry.Builtin())
	if _, err := enc.Encode([]domain.CampaignEvent{event}); !domain.IsKind(err, domain.ErrorKindUnsupportedConstruct) {
		t.Errorf("Encode() error = %v, want unsupported construct", err)
	}
}

func TestEncoder_ScheduledDurationLimitIsUnsupported(t *testing.T) {
	// A listening window only exists on triggered events; a scheduled event
	// carrying one has nowhere to encode it and must not drop it silently.
	event := domain.CampaignEvent{
		StartDay:      365,
		DurationLimit: 730,
		NodeSet:       domain.NodeSetSpec{AllPlaces: true},
		Targeting:     domain.TargetingSpec{Coverage: 100, Sex: domain.SexAny},
		Action: domain.ActionSpec{
			Kind: domain.ActionScheduled,
			Chain: domain.InterventionChain{Segments: []domain.ChainSegment{
				{Nodes: []domain.InterventionNode{{Name: "OutbreakIndividual"}}},
			}},
		},
	}

	enc := NewEncoder(registry.Builtin())
	if _, err := enc.Encode([]domain.CampaignEvent{event}); !domain.IsKind(err, domain.ErrorKindUnsupportedConstruct) {
		t.Errorf("Encode() error = %v, want unsupported construct", err)
	}
}

func TestEncoder_DocumentShape(t *testing.T) {
	event := mustParseLine(t, "365 :: AllPlaces :: 7.5% :: OutbreakIndividual")

	enc := NewEncoder(registry.Builtin())
	data, err := enc.Encode([]domain.CampaignEvent{event})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for _, want := range []string{
		`"Use_Defaults": 1`,
		`"class": "CampaignEvent"`,
		`"class": "NodeSetAll"`,
		`"Demographic_Coverage": 0.075`,
		`"class": "OutbreakIndividual"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("document missing %s:\n%s", want, data)
		}
	}
}
