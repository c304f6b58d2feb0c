// Package campaign decodes and encodes the engine-native CAMPAIGN-JSON
// document: a list of event coordinators, each with scheduling, node-set,
// demographic-restriction, and nested intervention-configuration objects.
package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Engine class tags the codec recognizes. Anything else is an unsupported
// construct.
const (
	classCampaignEvent    = "CampaignEvent"
	classStandardCoord    = "StandardInterventionDistributionEventCoordinator"
	classReferenceCoord   = "ReferenceTrackingEventCoordinator"
	classNodeSetAll       = "NodeSetAll"
	classNodeSetNodeList  = "NodeSetNodeList"
	classTriggeredWrapper = "NodeLevelHealthTriggeredIV"
	classMultiDistributor = "MultiInterventionDistributor"
	classDelayed          = "DelayedIntervention"
	classHIVDelayed       = "HIVDelayedIntervention"
)

// document is the top-level CAMPAIGN-JSON shape. Interventions are
// heterogeneous and schema-defined, so everything below the event level is
// handled as generic JSON objects.
type document struct {
	CampaignName string           `json:"Campaign_Name,omitempty"`
	UseDefaults  int              `json:"Use_Defaults"`
	Events       []map[string]any `json:"Events"`
}

// eventMapDoc is the slice of an engine config.json the decoder reads: the
// ad-hoc signal rename table.
type eventMapDoc struct {
	Parameters struct {
		EventMap map[string]string `json:"Event_Map"`
	} `json:"parameters"`
}

// LoadEventMap reads the Event_Map from an engine config file. Signals
// appearing as keys are renamed to their mapped values in decoded CCDL.
func LoadEventMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc eventMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return doc.Parameters.EventMap, nil
}

// Accessors for generic JSON objects. Absent keys and wrong types read as
// zero values; callers that must distinguish use the ok variants.

func getString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func getFloat(obj map[string]any, key string) (float64, bool) {
	f, ok := obj[key].(float64)
	return f, ok
}

func getObject(obj map[string]any, key string) map[string]any {
	m, _ := obj[key].(map[string]any)
	return m
}

func getList(obj map[string]any, key string) []any {
	l, _ := obj[key].([]any)
	return l
}

func getObjectList(obj map[string]any, key string) []map[string]any {
	var out []map[string]any
	for _, item := range getList(obj, key) {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func className(obj map[string]any) string {
	return getString(obj, "class")
}

// sortedKeys returns the keys of a JSON object in a stable order. Where the
// engine format uses objects as maps (property restrictions, weighted
// choices), decoding must not depend on Go's map iteration order.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatValue renders a JSON scalar the way it appears in CCDL
// parentheticals: numbers in shortest exact form, everything else as text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
