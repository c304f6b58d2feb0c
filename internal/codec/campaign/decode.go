package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/epiforge/ccdl/internal/codec"
	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
)

// Decoder walks CAMPAIGN-JSON event coordinators and populates grammar-model
// events. The registry supplies primary-parameter fields for intervention
// class tags; the optional event map renames raw signals to friendly names.
type Decoder struct {
	registry *registry.Registry
	signals  map[string]string
	workers  int
}

// NewDecoder creates a campaign JSON decoder. eventMap may be nil.
func NewDecoder(reg *registry.Registry, eventMap map[string]string) *Decoder {
	return &Decoder{registry: reg, signals: eventMap}
}

// WithWorkers decodes event coordinators on up to n goroutines. Values
// below 2 keep decoding sequential. Output order and diagnostics are
// identical either way.
func (d *Decoder) WithWorkers(n int) *Decoder {
	d.workers = n
	return d
}

// Name returns the codec name.
func (d *Decoder) Name() string {
	return "campaign-json"
}

// Decode translates every event coordinator in the document. Events outside
// the supported subset are reported with their coordinator index: as errors
// under ModeStrict, as warnings (and skipped) under ModeLenient. Event order
// follows document order exactly.
func (d *Decoder) Decode(data []byte, mode domain.Mode) ([]domain.CampaignEvent, *domain.Diagnostics) {
	diags := &domain.Diagnostics{}
	report := diags.AddError
	if mode == domain.ModeLenient {
		report = diags.AddWarning
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		diags.AddError(domain.ErrUnsupportedConstruct("document is not valid campaign JSON: " + err.Error()))
		return nil, diags
	}

	var events []domain.CampaignEvent
	for i, res := range d.decodeEvents(doc.Events) {
		if res.err != nil {
			terr := toTranslationError(res.err)
			if terr.Event < 0 {
				terr.WithEvent(i)
			}
			report(terr)
			continue
		}
		events = append(events, *res.event)
	}
	return events, diags
}

type eventResult struct {
	event *domain.CampaignEvent
	err   error
}

// decodeEvents decodes every coordinator, fanning out across workers when
// the decoder is configured for it. Results land at their document index so
// the caller always sees document order.
func (d *Decoder) decodeEvents(objs []map[string]any) []eventResult {
	results := make([]eventResult, len(objs))
	if d.workers < 2 || len(objs) < 2 {
		for i, obj := range objs {
			results[i].event, results[i].err = d.decodeEvent(obj)
		}
		return results
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for i, obj := range objs {
		i, obj := i, obj
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].event, results[i].err = d.decodeEvent(obj)
		}()
	}
	wg.Wait()
	return results
}

func toTranslationError(err error) *domain.TranslationError {
	if terr, ok := err.(*domain.TranslationError); ok {
		return terr
	}
	return domain.ErrUnsupportedConstruct(err.Error())
}

func (d *Decoder) decodeEvent(obj map[string]any) (*domain.CampaignEvent, error) {
	event := &domain.CampaignEvent{
		StartDay:  1,
		Targeting: domain.TargetingSpec{Coverage: 100, Sex: domain.SexAny},
	}
	if day, ok := getFloat(obj, "Start_Day"); ok {
		event.StartDay = int(day)
	}

	coord := getObject(obj, "Event_Coordinator_Config")
	if coord == nil {
		return nil, domain.ErrUnsupportedConstruct("event has no coordinator")
	}
	switch className(coord) {
	case classStandardCoord:
	case classReferenceCoord:
		event.Targeting.Steered = true
	default:
		return nil, domain.ErrUnsupportedConstruct(
			fmt.Sprintf("coordinator class %q is outside the supported subset", className(coord)))
	}

	if reps, ok := getFloat(coord, "Number_Repetitions"); ok && reps != 1 && reps != -1 {
		gap, ok := getFloat(coord, "Timesteps_Between_Repetitions")
		if !ok || gap == -1 {
			return nil, domain.ErrUnsupportedConstruct("repetition without an interval between repetitions")
		}
		event.RepeatCount = int(reps)
		event.RepeatInterval = int(gap)
	}

	if err := d.decodeNodeSet(obj, event); err != nil {
		return nil, err
	}
	d.decodeTargeting(coord, &event.Targeting)

	iv := getObject(coord, "Intervention_Config")
	if iv == nil {
		return nil, domain.ErrUnsupportedConstruct("coordinator has no intervention configuration")
	}

	if className(iv) == classTriggeredWrapper {
		if err := d.decodeTriggered(iv, event); err != nil {
			return nil, err
		}
	} else {
		segments, err := d.decodeChain(iv)
		if err != nil {
			return nil, err
		}
		event.Action = domain.ActionSpec{
			Kind:  domain.ActionScheduled,
			Chain: domain.InterventionChain{Segments: segments},
		}
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func (d *Decoder) decodeNodeSet(obj map[string]any, event *domain.CampaignEvent) error {
	ns := getObject(obj, "Nodeset_Config")
	if ns == nil {
		return domain.ErrUnsupportedConstruct("event has no node-set configuration")
	}
	switch className(ns) {
	case classNodeSetAll:
		event.NodeSet = domain.NodeSetSpec{AllPlaces: true}
	case classNodeSetNodeList:
		seen := make(map[int]bool)
		for _, v := range getList(ns, "Node_List") {
			f, ok := v.(float64)
			if !ok {
				return domain.ErrUnsupportedConstruct("node list entry is not a number")
			}
			id := int(f)
			if seen[id] {
				continue
			}
			seen[id] = true
			event.NodeSet.Nodes = append(event.NodeSet.Nodes, id)
		}
		if len(event.NodeSet.Nodes) == 0 {
			return domain.ErrUnsupportedConstruct("node list is empty")
		}
	default:
		return domain.ErrUnsupportedConstruct(
			fmt.Sprintf("node-set class %q is outside the supported subset", className(ns)))
	}
	return nil
}

// decodeTargeting reads the demographic-restriction fields present on obj
// into spec. Both standard coordinators and triggered wrappers carry the
// same field names, so it serves either level; triggered wrappers override
// whatever the coordinator set.
func (d *Decoder) decodeTargeting(obj map[string]any, spec *domain.TargetingSpec) {
	if cov, ok := getFloat(obj, "Demographic_Coverage"); ok {
		spec.Coverage = cov * 100
	}
	switch getString(obj, "Target_Gender") {
	case "Male":
		spec.Sex = domain.SexMale
	case "Female":
		spec.Sex = domain.SexFemale
	}
	if min, ok := getFloat(obj, "Target_Age_Min"); ok && min > 0 {
		spec.MinAge = &min
	}
	if max, ok := getFloat(obj, "Target_Age_Max"); ok && max < domain.MaxAgeDays {
		spec.MaxAge = &max
	}
	if props := d.decodeProperties(obj); len(props) > 0 {
		spec.Properties = props
	}
}

// decodeProperties reads either restriction spelling: the flat "Key:Value"
// string list, or the within-node list of objects.
func (d *Decoder) decodeProperties(obj map[string]any) []domain.PropertyFilter {
	var filters []domain.PropertyFilter
	if list := getList(obj, "Property_Restrictions"); len(list) > 0 {
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if sep := strings.IndexAny(s, ":="); sep > 0 {
				filters = append(filters, domain.PropertyFilter{
					Key:   strings.TrimSpace(s[:sep]),
					Value: strings.TrimSpace(s[sep+1:]),
				})
			}
		}
		return filters
	}
	if list := getObjectList(obj, "Property_Restrictions_Within_Node"); len(list) > 0 {
		// The engine ORs the list entries; only single-entry lists are in
		// the supported subset, and callers see the first entry.
		entry := list[0]
		for _, key := range sortedKeys(entry) {
			filters = append(filters, domain.PropertyFilter{Key: key, Value: formatValue(entry[key])})
		}
	}
	return filters
}

func (d *Decoder) decodeTriggered(iv map[string]any, event *domain.CampaignEvent) error {
	var signals []string
	for _, item := range getList(iv, "Trigger_Condition_List") {
		s, ok := item.(string)
		if !ok || s == "" {
			return domain.ErrUnknownTrigger("trigger condition is not a signal name")
		}
		signals = append(signals, d.mapSignal(s))
	}
	if len(signals) == 0 {
		return domain.ErrUnknownTrigger("triggered intervention listens to no signals")
	}

	d.decodeTargeting(iv, &event.Targeting)

	if dur, ok := getFloat(iv, "Duration"); ok && dur != -1 {
		event.DurationLimit = event.StartDay + int(dur)
	}

	inner := getObject(iv, "Actual_IndividualIntervention_Config")
	if inner == nil {
		return domain.ErrUnsupportedConstruct("triggered wrapper has no inner intervention")
	}
	segments, err := d.decodeChain(inner)
	if err != nil {
		return err
	}
	event.Action = domain.ActionSpec{
		Kind:    domain.ActionTriggered,
		Signals: signals,
		Chain:   domain.InterventionChain{Segments: segments},
	}
	return nil
}

// decodeChain converts a nested intervention configuration into chain
// segments: distributor lists become simultaneous nodes, delay wrappers
// become delay edges in front of their recursively decoded payload.
func (d *Decoder) decodeChain(iv map[string]any) ([]domain.ChainSegment, error) {
	switch className(iv) {
	case classMultiDistributor:
		items := getObjectList(iv, "Intervention_List")
		if len(items) == 0 {
			return nil, domain.ErrUnsupportedConstruct("distributor has an empty intervention list")
		}
		return d.mergeSimultaneous(items)

	case classDelayed, classHIVDelayed:
		delay, err := d.decodeDelay(iv)
		if err != nil {
			return nil, err
		}
		inner := d.delayedPayload(iv)
		if len(inner) == 0 {
			return nil, domain.ErrUnsupportedConstruct("delay wrapper has no payload")
		}
		segments, err := d.mergeSimultaneous(inner)
		if err != nil {
			return nil, err
		}
		if segments[0].Delay != nil {
			return nil, domain.ErrUnsupportedConstruct("consecutive delay wrappers with no intervention between them")
		}
		segments[0].Delay = delay
		return segments, nil

	default:
		node, err := d.decodeNode(iv)
		if err != nil {
			return nil, err
		}
		return []domain.ChainSegment{{Nodes: []domain.InterventionNode{node}}}, nil
	}
}

// mergeSimultaneous decodes each item and folds the results into one chain:
// undelayed leading segments fuse into a single simultaneous group, delayed
// continuations append as later segments.
func (d *Decoder) mergeSimultaneous(items []map[string]any) ([]domain.ChainSegment, error) {
	var head domain.ChainSegment
	var tail []domain.ChainSegment
	for _, item := range items {
		segs, err := d.decodeChain(item)
		if err != nil {
			return nil, err
		}
		if segs[0].Delay == nil {
			head.Nodes = append(head.Nodes, segs[0].Nodes...)
			tail = append(tail, segs[1:]...)
		} else {
			tail = append(tail, segs...)
		}
	}
	if len(head.Nodes) == 0 {
		return tail, nil
	}
	return append([]domain.ChainSegment{head}, tail...), nil
}

// delayedPayload collects the inner configs of a delay wrapper across the
// spellings the engine uses: a config list, a single config, or a bare
// broadcast signal.
func (d *Decoder) delayedPayload(iv map[string]any) []map[string]any {
	if list := getObjectList(iv, "Actual_IndividualIntervention_Configs"); len(list) > 0 {
		return list
	}
	if inner := getObject(iv, "Actual_IndividualIntervention_Config"); inner != nil {
		return []map[string]any{inner}
	}
	if signal := getString(iv, "Broadcast_Event"); signal != "" {
		return []map[string]any{{
			"class":           "BroadcastEvent",
			"Broadcast_Event": signal,
		}}
	}
	return nil
}

// decodeDelay reads the delay distribution across both the legacy
// "<DIST>_DURATION" keyword style and the newer per-parameter style.
func (d *Decoder) decodeDelay(iv map[string]any) (*domain.DelaySpec, error) {
	raw := getString(iv, "Delay_Period_Distribution")
	if raw == "" {
		raw = getString(iv, "Delay_Distribution")
	}
	name := strings.TrimSuffix(strings.TrimSuffix(raw, "_DURATION"), "_DISTRIBUTION")
	if name == "CONSTANT" {
		name = string(domain.DelayFixed)
	}

	period := func(keys ...string) float64 {
		for _, key := range keys {
			if v, ok := getFloat(iv, key); ok {
				return v
			}
		}
		return 0
	}

	switch domain.DelayDistribution(name) {
	case domain.DelayFixed:
		return &domain.DelaySpec{
			Distribution: domain.DelayFixed,
			Params:       []float64{period("Delay_Period", "Delay_Period_Constant")},
		}, nil
	case domain.DelayExponential:
		return &domain.DelaySpec{
			Distribution: domain.DelayExponential,
			Params:       []float64{period("Delay_Period", "Delay_Period_Exponential")},
		}, nil
	case domain.DelayUniform:
		return &domain.DelaySpec{
			Distribution: domain.DelayUniform,
			Params:       []float64{period("Delay_Period_Min"), period("Delay_Period_Max")},
		}, nil
	case domain.DelayGaussian:
		return &domain.DelaySpec{
			Distribution: domain.DelayGaussian,
			Params:       []float64{period("Delay_Period_Mean"), period("Delay_Period_Std_Dev")},
		}, nil
	case domain.DelayWeibull:
		return &domain.DelaySpec{
			Distribution: domain.DelayWeibull,
			Params:       []float64{period("Delay_Period_Scale"), period("Delay_Period_Shape")},
		}, nil
	case "":
		// Modern documents may carry only the parameter key.
		if v, ok := getFloat(iv, "Delay_Period_Constant"); ok {
			return &domain.DelaySpec{Distribution: domain.DelayFixed, Params: []float64{v}}, nil
		}
		return &domain.DelaySpec{Distribution: domain.DelayFixed, Params: []float64{0}}, nil
	default:
		return nil, domain.ErrUnknownDistribution(raw)
	}
}

// decodeNode converts one intervention object into a chain node, using the
// registry to find the primary-parameter field for its class tag.
func (d *Decoder) decodeNode(iv map[string]any) (domain.InterventionNode, error) {
	name := className(iv)
	if name == "" {
		return domain.InterventionNode{}, domain.ErrUnsupportedConstruct("intervention object has no class tag")
	}
	node := domain.InterventionNode{Name: name}
	desc := d.registry.Descriptor(name)

	if desc.WeightedChoice {
		choices := getObject(iv, desc.Primary)
		if len(choices) == 0 {
			return node, domain.ErrUnsupportedConstruct("weighted-choice intervention has no choices")
		}
		for _, key := range sortedKeys(choices) {
			prob, ok := choices[key].(float64)
			if !ok {
				return node, domain.ErrTargetingRange("weighted-choice probability is not a number").WithFragment(key)
			}
			node.Choices = append(node.Choices, domain.WeightedChoice{Name: key, Probability: prob})
		}
		return node, nil
	}

	if desc.Primary == "" {
		return node, nil
	}
	primary, ok := iv[desc.Primary]
	if !ok {
		return node, nil
	}
	param := d.mapValue(primary)
	if desc.Secondary != "" {
		if secondary, ok := iv[desc.Secondary]; ok {
			param += paramSep(name) + d.mapValue(secondary)
		} else if desc.Secondary == "Negative_Diagnosis_Event" {
			param += "/null"
		}
	}
	node.Param = param
	return node, nil
}

// paramSep is the separator between primary and secondary parameter values
// in a parenthetical. Property changers keep the engine's key:value form.
func paramSep(class string) string {
	if class == "PropertyValueChanger" {
		return ":"
	}
	return "/"
}

// mapValue formats a parameter value, renaming string values through the
// event map so ad-hoc signals decode to their friendly names.
func (d *Decoder) mapValue(v any) string {
	s := formatValue(v)
	return d.mapSignal(s)
}

func (d *Decoder) mapSignal(s string) string {
	if mapped, ok := d.signals[s]; ok {
		return mapped
	}
	return s
}

var _ codec.Decoder = (*Decoder)(nil)
