// Package grammar parses and renders CCDL, the line-oriented campaign
// grammar: one event per line, four fields joined by " :: " as
// When :: Where :: Who :: What.
package grammar

// Grammar tokens. The parser is tolerant of surrounding whitespace; the
// renderer always emits the canonical forms below.
const (
	// MainSep joins the four top-level fields.
	MainSep = " :: "

	// AllPlaces is the Where sentinel meaning "every node".
	AllPlaces = "AllPlaces"

	// Steered is the Who sentinel for reference-tracked coverage.
	Steered = "STEERED"

	// TriggerSep separates trigger signals from the chain they fire.
	TriggerSep = "->"

	// SimultaneousSep joins interventions that fire at the same instant,
	// and multiple trigger signals.
	SimultaneousSep = "+"

	// DelaySep separates a delay edge from the post-delay sub-chain.
	DelaySep = "=>"

	// ClauseSep joins Who clauses.
	ClauseSep = "/"

	// DelayClass is the pseudo-intervention that carries a DelaySpec on a
	// delay edge.
	DelayClass = "DelayedIntervention"
)
