package campaign

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/epiforge/ccdl/internal/codec"
	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
)

// Encoder synthesizes CAMPAIGN-JSON event coordinators from grammar-model
// events. Every intervention name must resolve in the registry; encoding
// always produces a fresh document and never merges into an existing one.
type Encoder struct {
	registry *registry.Registry
}

// NewEncoder creates a campaign JSON encoder backed by reg.
func NewEncoder(reg *registry.Registry) *Encoder {
	return &Encoder{registry: reg}
}

// Name returns the codec name.
func (e *Encoder) Name() string {
	return "campaign-json"
}

// Encode translates events into a complete campaign document. The first
// fatal error aborts the whole encode; errors carry the index of the
// offending event.
func (e *Encoder) Encode(events []domain.CampaignEvent) ([]byte, error) {
	doc := document{UseDefaults: 1, Events: []map[string]any{}}
	for i := range events {
		obj, err := e.encodeEvent(&events[i])
		if err != nil {
			return nil, toTranslationError(err).WithEvent(i)
		}
		doc.Events = append(doc.Events, obj)
	}
	return json.MarshalIndent(doc, "", "    ")
}

func (e *Encoder) encodeEvent(event *domain.CampaignEvent) (map[string]any, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.Targeting.Steered {
		return nil, domain.ErrUnsupportedConstruct("reference-tracked (STEERED) coverage cannot be encoded")
	}

	coord := map[string]any{
		"class":                         classStandardCoord,
		"Number_Repetitions":            1,
		"Timesteps_Between_Repetitions": -1,
	}
	if event.RepeatCount > 0 {
		coord["Number_Repetitions"] = event.RepeatCount
		coord["Timesteps_Between_Repetitions"] = event.RepeatInterval
	}

	chain, err := e.encodeChain(event.Action.Chain.Segments)
	if err != nil {
		return nil, err
	}

	switch event.Action.Kind {
	case domain.ActionScheduled:
		applyTargeting(coord, event.Targeting)
		coord["Intervention_Config"] = chain

	case domain.ActionTriggered:
		wrapper := map[string]any{
			"class":                                classTriggeredWrapper,
			"Trigger_Condition_List":               event.Action.Signals,
			"Duration":                             -1,
			"Actual_IndividualIntervention_Config": chain,
		}
		if event.DurationLimit > 0 {
			wrapper["Duration"] = event.DurationLimit - event.StartDay
		}
		applyTargeting(wrapper, event.Targeting)
		coord["Demographic_Coverage"] = 1.0
		coord["Intervention_Config"] = wrapper
	}

	return map[string]any{
		"class":                    classCampaignEvent,
		"Start_Day":                float64(event.StartDay),
		"Nodeset_Config":           encodeNodeSet(event.NodeSet),
		"Event_Coordinator_Config": coord,
	}, nil
}

func encodeNodeSet(ns domain.NodeSetSpec) map[string]any {
	if ns.AllPlaces {
		return map[string]any{"class": classNodeSetAll}
	}
	return map[string]any{
		"class":     classNodeSetNodeList,
		"Node_List": ns.Nodes,
	}
}

// applyTargeting writes the demographic-restriction fields. Scheduled events
// carry them on the coordinator, triggered events on the listening wrapper;
// the field names are the same in both places.
func applyTargeting(obj map[string]any, spec domain.TargetingSpec) {
	obj["Demographic_Coverage"] = spec.Coverage / 100
	if spec.Sex != domain.SexAny && spec.Sex != "" {
		obj["Target_Gender"] = string(spec.Sex)
		obj["Target_Demographic"] = "ExplicitAgeRangesAndGender"
	}
	if spec.MinAge != nil {
		obj["Target_Age_Min"] = *spec.MinAge
	}
	if spec.MaxAge != nil {
		obj["Target_Age_Max"] = *spec.MaxAge
	}
	if len(spec.Properties) > 0 {
		restrictions := make([]string, len(spec.Properties))
		for i, p := range spec.Properties {
			restrictions[i] = p.Key + ":" + p.Value
		}
		obj["Property_Restrictions"] = restrictions
	}
}

// encodeChain builds the nested intervention tree from the tail of the
// chain inward: each delayed segment wraps everything after it, and
// simultaneous groups become distributor lists.
func (e *Encoder) encodeChain(segments []domain.ChainSegment) (map[string]any, error) {
	var tail map[string]any
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		nodes := make([]map[string]any, 0, len(seg.Nodes)+1)
		for _, node := range seg.Nodes {
			obj, err := e.encodeNode(node)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, obj)
		}
		if tail != nil {
			nodes = append(nodes, tail)
		}

		var cur map[string]any
		switch {
		case seg.Delay != nil:
			cur = encodeDelay(seg.Delay)
			cur["Actual_IndividualIntervention_Configs"] = nodes
		case len(nodes) == 1:
			cur = nodes[0]
		default:
			cur = map[string]any{
				"class":             classMultiDistributor,
				"Intervention_List": nodes,
			}
		}
		tail = cur
	}
	return tail, nil
}

func encodeDelay(d *domain.DelaySpec) map[string]any {
	obj := map[string]any{
		"class":                     classDelayed,
		"Delay_Period_Distribution": string(d.Distribution) + "_DURATION",
	}
	switch d.Distribution {
	case domain.DelayFixed, domain.DelayExponential:
		obj["Delay_Period"] = d.Params[0]
	case domain.DelayUniform:
		obj["Delay_Period_Min"] = d.Params[0]
		obj["Delay_Period_Max"] = d.Params[1]
	case domain.DelayGaussian:
		obj["Delay_Period_Mean"] = d.Params[0]
		obj["Delay_Period_Std_Dev"] = d.Params[1]
	case domain.DelayWeibull:
		obj["Delay_Period_Scale"] = d.Params[0]
		obj["Delay_Period_Shape"] = d.Params[1]
	}
	return obj
}

// encodeNode resolves the node's name in the registry, copies the class
// defaults, then writes the primary parameter into the registry-specified
// field. An unknown name is fatal; there is no silent default.
func (e *Encoder) encodeNode(node domain.InterventionNode) (map[string]any, error) {
	desc, err := e.registry.Resolve(node.Name)
	if err != nil {
		return nil, err
	}

	obj := make(map[string]any, len(desc.Defaults)+2)
	for k, v := range desc.Defaults {
		obj[k] = v
	}
	obj["class"] = desc.Class

	if len(node.Choices) > 0 {
		if !desc.WeightedChoice {
			return nil, domain.ErrUnsupportedConstruct(
				fmt.Sprintf("intervention %q does not take a weighted-choice parameter", node.Name))
		}
		choices := make(map[string]float64, len(node.Choices))
		for _, c := range node.Choices {
			choices[c.Name] = c.Probability
		}
		obj[desc.Primary] = choices
		return obj, nil
	}

	if node.Param == "" {
		return obj, nil
	}
	if desc.Primary == "" {
		return nil, domain.ErrUnsupportedConstruct(
			fmt.Sprintf("intervention %q takes no primary parameter", node.Name))
	}

	primary := node.Param
	if desc.Secondary != "" {
		parts := strings.SplitN(node.Param, paramSep(node.Name), 2)
		primary = parts[0]
		if len(parts) == 2 && parts[1] != "null" {
			obj[desc.Secondary] = coerce(desc, desc.Secondary, parts[1])
		}
	}
	obj[desc.Primary] = coerce(desc, desc.Primary, primary)
	return obj, nil
}

// coerce types a textual parameter the way the schema default suggests:
// numeric defaults get numbers, everything else stays text.
func coerce(desc registry.Descriptor, field, text string) any {
	if _, ok := desc.Defaults[field].(float64); ok {
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return v
		}
	}
	return text
}

var _ codec.Encoder = (*Encoder)(nil)
