// Package domain defines the grammar model shared by the CCDL text codec and
// the campaign JSON codec, plus the canonical error taxonomy.
package domain

// MaxAgeDays is the engine's "no upper bound" age ceiling, in days.
const MaxAgeDays = 125 * 365.0

// CampaignEvent is the unit of translation: one CCDL line, one event
// coordinator in CAMPAIGN-JSON. Instances are built by a parser or decoder
// and never mutated afterwards.
type CampaignEvent struct {
	StartDay       int
	RepeatCount    int // 0 means no repetition
	RepeatInterval int // timesteps between repetitions; 0 means unset
	DurationLimit  int // end day of a triggered listening window; 0 means unbounded, triggered actions only
	NodeSet        NodeSetSpec
	Targeting      TargetingSpec
	Action         ActionSpec
}

// NodeSetSpec names the simulation locations an event applies to.
// AllPlaces is the sentinel for "every node"; otherwise Nodes is an ordered,
// de-duplicated list of node identifiers.
type NodeSetSpec struct {
	AllPlaces bool
	Nodes     []int
}

// Sex restricts an event to one gender.
type Sex string

const (
	SexAny    Sex = "Any"
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
)

// PropertyFilter is one individual-property restriction; multiple filters on
// an event are ANDed.
type PropertyFilter struct {
	Key   string
	Value string
}

// TargetingSpec is the demographic restriction of an event. Coverage is a
// percentage in [0,100]. Steered marks reference-tracked coverage, in which
// case Coverage carries no meaning. Nil age bounds mean unbounded.
type TargetingSpec struct {
	Coverage   float64
	Steered    bool
	Sex        Sex
	MinAge     *float64
	MaxAge     *float64
	Properties []PropertyFilter
}

// ActionKind discriminates the ActionSpec union.
type ActionKind string

const (
	// ActionScheduled fires the chain unconditionally at StartDay.
	ActionScheduled ActionKind = "scheduled"

	// ActionTriggered fires the chain when one of the listed signals is
	// broadcast, subject to the same targeting.
	ActionTriggered ActionKind = "triggered"
)

// ActionSpec is what an event does: either a scheduled chain or a chain
// triggered by one or more signals.
type ActionSpec struct {
	Kind    ActionKind
	Signals []string // triggered only; order preserved
	Chain   InterventionChain
}

// InterventionChain is an ordered, non-empty sequence of intervention
// segments. Nodes within a segment fire simultaneously; consecutive segments
// are separated by a delay edge.
type InterventionChain struct {
	Segments []ChainSegment
}

// ChainSegment is one simultaneous-fire group. Delay is the delay edge that
// precedes the segment: required on every segment after the first, optional
// on the first (a chain may open with a delay, as in a trigger that waits
// before firing).
type ChainSegment struct {
	Delay *DelaySpec
	Nodes []InterventionNode
}

// InterventionNode is one intervention in a chain. Name must resolve in the
// registry at encode time. At most one of Param and Choices is set: Param is
// a literal primary parameter, Choices a weighted-choice map.
type InterventionNode struct {
	Name    string
	Param   string
	Choices []WeightedChoice
}

// WeightedChoice is one outcome of a weighted-choice primary parameter.
// Probabilities across a node must sum to at most 1.0; the remainder is the
// implicit "no outcome".
type WeightedChoice struct {
	Name        string
	Probability float64
}

// DelayDistribution names the distribution of a delay edge.
type DelayDistribution string

const (
	DelayFixed       DelayDistribution = "FIXED"
	DelayExponential DelayDistribution = "EXPONENTIAL"
	DelayUniform     DelayDistribution = "UNIFORM"
	DelayGaussian    DelayDistribution = "GAUSSIAN"
	DelayWeibull     DelayDistribution = "WEIBULL"
)

// KnownDelayDistribution reports whether d is one of the supported delay
// distributions.
func KnownDelayDistribution(d DelayDistribution) bool {
	switch d {
	case DelayFixed, DelayExponential, DelayUniform, DelayGaussian, DelayWeibull:
		return true
	}
	return false
}

// DelaySpec is the delay attached to a chain's "=>" edge. Params are the
// distribution's parameters in a fixed order: FIXED and EXPONENTIAL take one
// value, UNIFORM min/max, GAUSSIAN mean/stddev, WEIBULL scale/shape.
type DelaySpec struct {
	Distribution DelayDistribution
	Params       []float64
}

// Triggered reports whether the event fires on a signal rather than on a
// schedule.
func (e *CampaignEvent) Triggered() bool {
	return e.Action.Kind == ActionTriggered
}

// Nodes returns a flat view of every intervention node in the chain, in
// firing order.
func (c InterventionChain) Nodes() []InterventionNode {
	var out []InterventionNode
	for _, seg := range c.Segments {
		out = append(out, seg.Nodes...)
	}
	return out
}

// Validate checks the model invariants that hold for every event regardless
// of translation direction: coverage and age ranges, non-empty trigger
// signals, non-empty chain, weighted-choice probability sums, and delay edge
// placement.
func (e *CampaignEvent) Validate() error {
	if e.StartDay < 0 {
		return ErrTargetingRange("start day must be >= 0")
	}
	if e.RepeatCount < 0 || (e.RepeatCount > 0 && e.RepeatInterval <= 0) {
		return ErrTargetingRange("repetition requires a positive interval")
	}
	if !e.Targeting.Steered && (e.Targeting.Coverage < 0 || e.Targeting.Coverage > 100) {
		return ErrTargetingRange("coverage must be within [0,100]")
	}
	if e.Targeting.MinAge != nil && *e.Targeting.MinAge < 0 {
		return ErrTargetingRange("minimum age must be >= 0")
	}
	if e.Targeting.MaxAge != nil && (*e.Targeting.MaxAge < 0 || *e.Targeting.MaxAge > MaxAgeDays) {
		return ErrTargetingRange("maximum age out of range")
	}
	if e.Action.Kind == ActionTriggered && len(e.Action.Signals) == 0 {
		return ErrUnknownTrigger("triggered event has no signal")
	}
	if e.DurationLimit != 0 && e.Action.Kind != ActionTriggered {
		return ErrUnsupportedConstruct("duration limit requires a triggered action")
	}
	if len(e.Action.Chain.Segments) == 0 {
		return ErrUnsupportedConstruct("event has an empty intervention chain")
	}
	for i, seg := range e.Action.Chain.Segments {
		if len(seg.Nodes) == 0 {
			return ErrUnsupportedConstruct("chain segment has no interventions")
		}
		if i > 0 && seg.Delay == nil {
			return ErrUnsupportedConstruct("chain segment after the first is missing its delay edge")
		}
		if seg.Delay != nil && !KnownDelayDistribution(seg.Delay.Distribution) {
			return ErrUnknownDistribution(string(seg.Delay.Distribution))
		}
		for _, node := range seg.Nodes {
			if node.Name == "" {
				return ErrUnsupportedConstruct("intervention node has no name")
			}
			if len(node.Choices) > 0 {
				sum := 0.0
				for _, c := range node.Choices {
					if c.Probability < 0 {
						return ErrTargetingRange("weighted choice probability must be >= 0")
					}
					sum += c.Probability
				}
				if sum > 1.0+1e-9 {
					return ErrTargetingRange("weighted choice probabilities sum to more than 1.0")
				}
			}
		}
	}
	return nil
}
