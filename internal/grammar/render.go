package grammar

import (
	"strconv"
	"strings"

	"github.com/epiforge/ccdl/internal/domain"
)

// RenderDocument renders a whole campaign as CCDL: the literal decimal event
// count on the first line, then one canonical line per event, in order.
func RenderDocument(events []domain.CampaignEvent) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(events)))
	b.WriteByte('\n')
	for i := range events {
		b.WriteString(RenderEvent(&events[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderEvent renders one event as a canonical CCDL line. Rendering is
// stable: parsing the output and rendering again reproduces it exactly.
func RenderEvent(e *domain.CampaignEvent) string {
	fields := []string{
		renderWhen(e),
		renderWhere(e),
		renderWho(e),
		renderWhat(e),
	}
	return strings.Join(fields, MainSep)
}

func renderWhen(e *domain.CampaignEvent) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(e.StartDay))
	if e.RepeatCount > 0 {
		b.WriteString("(x")
		b.WriteString(strconv.Itoa(e.RepeatCount))
		b.WriteString("/_")
		b.WriteString(strconv.Itoa(e.RepeatInterval))
		b.WriteString(")")
	}
	if e.DurationLimit > 0 {
		b.WriteString("-")
		b.WriteString(strconv.Itoa(e.DurationLimit))
	}
	return b.String()
}

func renderWhere(e *domain.CampaignEvent) string {
	if e.NodeSet.AllPlaces {
		return AllPlaces
	}
	ids := make([]string, len(e.NodeSet.Nodes))
	for i, id := range e.NodeSet.Nodes {
		ids[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(ids, ",") + "]"
}

// renderWho emits clauses in the fixed order coverage, sex, min age, max
// age, property filters. Coverage is always present; the rest only when they
// differ from the defaults.
func renderWho(e *domain.CampaignEvent) string {
	t := e.Targeting
	var clauses []string
	if t.Steered {
		clauses = append(clauses, Steered)
	} else {
		clauses = append(clauses, formatPercent(t.Coverage)+"%")
	}
	if t.Sex != domain.SexAny && t.Sex != "" {
		clauses = append(clauses, string(t.Sex))
	}
	if t.MinAge != nil {
		clauses = append(clauses, ">"+formatNumber(*t.MinAge))
	}
	if t.MaxAge != nil {
		clauses = append(clauses, "<"+formatNumber(*t.MaxAge))
	}
	for _, p := range t.Properties {
		clauses = append(clauses, p.Key+"="+p.Value)
	}
	return strings.Join(clauses, ClauseSep)
}

func renderWhat(e *domain.CampaignEvent) string {
	var b strings.Builder
	if e.Action.Kind == domain.ActionTriggered {
		b.WriteString(strings.Join(e.Action.Signals, SimultaneousSep))
		b.WriteString(TriggerSep)
	}
	b.WriteString(renderChain(e.Action.Chain))
	return b.String()
}

func renderChain(chain domain.InterventionChain) string {
	var b strings.Builder
	for i, seg := range chain.Segments {
		if seg.Delay != nil {
			if i > 0 {
				b.WriteString(SimultaneousSep)
			}
			b.WriteString(DelayClass)
			b.WriteString("(")
			b.WriteString(renderDelay(seg.Delay))
			b.WriteString(")")
			b.WriteString(DelaySep)
		}
		for j, node := range seg.Nodes {
			if j > 0 {
				b.WriteString(SimultaneousSep)
			}
			b.WriteString(renderNode(node))
		}
	}
	return b.String()
}

func renderNode(node domain.InterventionNode) string {
	switch {
	case len(node.Choices) > 0:
		pairs := make([]string, len(node.Choices))
		for i, c := range node.Choices {
			pairs[i] = c.Name + ": " + formatNumber(c.Probability)
		}
		return node.Name + "{" + strings.Join(pairs, ", ") + "}"
	case node.Param != "":
		return node.Name + "(" + node.Param + ")"
	default:
		return node.Name
	}
}

func renderDelay(d *domain.DelaySpec) string {
	parts := make([]string, 0, len(d.Params)+1)
	parts = append(parts, string(d.Distribution))
	for _, p := range d.Params {
		parts = append(parts, formatNumber(p))
	}
	return strings.Join(parts, "/")
}

// formatPercent keeps one decimal for whole numbers so 100 renders as
// "100.0", matching the historical output, while 7.5 stays "7.5".
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatNumber is the shortest exact decimal form.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
