// Package viz renders a campaign's signal wiring as a Graphviz digraph:
// boxes are events, ellipses are signals, and edges show which events listen
// for and broadcast which signals.
package viz

import (
	"fmt"
	"strings"

	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/registry"
)

// Grapher builds DOT output. The registry identifies which intervention
// parameters are signal names, so broadcast edges work for diagnostics and
// health-seeking behaviors as well as plain broadcasts.
type Grapher struct {
	registry *registry.Registry
}

// New creates a Grapher backed by reg.
func New(reg *registry.Registry) *Grapher {
	return &Grapher{registry: reg}
}

// Dot renders events as a DOT digraph. Output is deterministic: events keep
// document order, signal nodes appear in first-mention order.
func (g *Grapher) Dot(events []domain.CampaignEvent) string {
	var b strings.Builder
	b.WriteString("digraph campaign {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [fontname=\"Helvetica\"];\n\n")

	signals := newSignalSet()
	for i := range events {
		e := &events[i]
		fmt.Fprintf(&b, "    event_%d [shape=box, label=%q];\n", i, eventLabel(e))
		for _, sig := range e.Action.Signals {
			fmt.Fprintf(&b, "    %s -> event_%d;\n", signals.node(sig), i)
		}
		for _, sig := range g.broadcasts(e) {
			fmt.Fprintf(&b, "    event_%d -> %s;\n", i, signals.node(sig))
		}
	}

	if len(signals.order) > 0 {
		b.WriteString("\n")
		for _, sig := range signals.order {
			fmt.Fprintf(&b, "    %s [shape=ellipse, label=%q];\n", signals.names[sig], sig)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// eventLabel is a compact one-line description: start day plus the chain's
// intervention names.
func eventLabel(e *domain.CampaignEvent) string {
	names := make([]string, 0, 2)
	for _, node := range e.Action.Chain.Nodes() {
		names = append(names, node.Name)
	}
	return fmt.Sprintf("day %d: %s", e.StartDay, strings.Join(names, "+"))
}

// broadcasts collects the signal names an event's chain emits, in chain
// order. A parameter counts as a signal when its registry field name ends in
// "_Event"; weighted-choice outcomes are all signals.
func (g *Grapher) broadcasts(e *domain.CampaignEvent) []string {
	var out []string
	for _, node := range e.Action.Chain.Nodes() {
		desc := g.registry.Descriptor(node.Name)
		for _, c := range node.Choices {
			out = append(out, c.Name)
		}
		if node.Param == "" || !strings.HasSuffix(desc.Primary, "_Event") {
			continue
		}
		parts := strings.SplitN(node.Param, "/", 2)
		out = append(out, parts[0])
		if len(parts) == 2 && parts[1] != "null" && strings.HasSuffix(desc.Secondary, "_Event") {
			out = append(out, parts[1])
		}
	}
	return out
}

// signalSet assigns stable DOT node identifiers to signal names.
type signalSet struct {
	names map[string]string
	order []string
}

func newSignalSet() *signalSet {
	return &signalSet{names: make(map[string]string)}
}

func (s *signalSet) node(sig string) string {
	if id, ok := s.names[sig]; ok {
		return id
	}
	id := fmt.Sprintf("signal_%d", len(s.order))
	s.names[sig] = id
	s.order = append(s.order, sig)
	return id
}
