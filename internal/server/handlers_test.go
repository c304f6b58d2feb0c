package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
	"github.com/epiforge/ccdl/internal/storage"
	"github.com/epiforge/ccdl/internal/storage/memory"
	"github.com/epiforge/ccdl/internal/translate"
)

const campaignDoc = `{
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

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := translate.NewService(registry.Builtin(), nil, logger)
	runs := memory.New()
	return New(0, svc, runs, domain.ModeLenient, logger), runs
}

func TestHandler_Decode(t *testing.T) {
	srv, runs := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(campaignDoc))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var resp struct {
		CCDL   string `json:"ccdl"`
		Events int    `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if want := "1\n365 :: AllPlaces :: 7.5% :: OutbreakIndividual\n"; resp.CCDL != want {
		t.Errorf("ccdl = %q, want %q", resp.CCDL, want)
	}
	if resp.Events != 1 {
		t.Errorf("events = %d, want 1", resp.Events)
	}

	recorded, _ := runs.ListRuns(req.Context(), 10)
	if len(recorded) != 1 || recorded[0].Direction != "decode" {
		t.Errorf("run log = %+v, want one decode run", recorded)
	}
}

func TestHandler_RequestID(t *testing.T) {
	srv, runs := newTestServer(t)

	// A valid inbound UUID is kept and becomes the run-log record ID.
	inbound := "0f8c1d2e-3a4b-4c5d-8e6f-7a8b9c0d1e2f"
	req := httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(campaignDoc))
	req.Header.Set("X-Request-ID", inbound)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != inbound {
		t.Errorf("X-Request-ID = %q, want %q", got, inbound)
	}
	recorded, _ := runs.ListRuns(req.Context(), 10)
	if len(recorded) != 1 || recorded[0].ID != inbound {
		t.Errorf("run log = %+v, want one run with ID %q", recorded, inbound)
	}

	// Anything that is not a UUID is replaced.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	if got == "" || got == "not-a-uuid" {
		t.Errorf("X-Request-ID = %q, want a fresh UUID", got)
	}
}

func TestHandler_Encode(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"ccdl": "1\n365 :: AllPlaces :: 7.5% :: OutbreakIndividual\n"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/encode", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var resp struct {
		Campaign json.RawMessage `json:"campaign"`
		Events   int             `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !strings.Contains(string(resp.Campaign), "OutbreakIndividual") {
		t.Errorf("campaign = %s, want an OutbreakIndividual event", resp.Campaign)
	}
}

func TestHandler_Encode_UnknownIntervention(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"ccdl": "1\n1 :: AllPlaces :: 100.0% :: Foo\n"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/encode", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "unknown_intervention") {
		t.Errorf("body = %s, want an unknown_intervention error", rec.Body)
	}
}

func TestHandler_ModeOverride(t *testing.T) {
	srv, _ := newTestServer(t)

	// One decodable event plus one with an unsupported coordinator.
	doc := `{
		"Events": [
			{
				"class": "CampaignEvent",
				"Start_Day": 1,
				"Nodeset_Config": {"class": "NodeSetAll"},
				"Event_Coordinator_Config": {
					"class": "StandardInterventionDistributionEventCoordinator",
					"Demographic_Coverage": 1,
					"Intervention_Config": {"class": "OutbreakIndividual"}
				}
			},
			{
				"class": "CampaignEvent",
				"Start_Day": 2,
				"Nodeset_Config": {"class": "NodeSetAll"},
				"Event_Coordinator_Config": {
					"class": "CalendarEventCoordinator",
					"Intervention_Config": {"class": "OutbreakIndividual"}
				}
			}
		]
	}`

	// Server default is lenient: the bad event becomes a warning.
	req := httptest.NewRequest(http.MethodPost, "/v1/decode", strings.NewReader(doc))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lenient status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	// Strict override fails the run.
	req = httptest.NewRequest(http.MethodPost, "/v1/decode?mode=strict", strings.NewReader(doc))
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("strict status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandler_BadMode(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decode?mode=pedantic", strings.NewReader(campaignDoc))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandler_ListRuns(t *testing.T) {
	srv, runs := newTestServer(t)
	_ = runs.RecordRun(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &storage.Run{
		Direction: "decode", Mode: "lenient", Events: 3,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got []storage.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(got) != 1 || got[0].Events != 3 {
		t.Errorf("runs = %+v, want the recorded decode run", got)
	}
}

func TestHandler_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
