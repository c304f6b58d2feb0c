package grammar

import (
	"strconv"
	"strings"

	"github.com/epiforge/ccdl/internal/domain"
)

// ParseLine parses one non-empty, non-comment CCDL line into a campaign
// event. lineNo is the 1-based line number carried on every error.
func ParseLine(line string, lineNo int) (*domain.CampaignEvent, error) {
	fields := strings.Split(line, "::")
	if len(fields) != 4 {
		return nil, domain.ErrMalformedLine("expected exactly 3 '::' separators").
			WithLine(lineNo).WithFragment(line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	event := &domain.CampaignEvent{
		Targeting: domain.TargetingSpec{Coverage: 100, Sex: domain.SexAny},
	}

	if err := parseWhen(fields[0], event); err != nil {
		return nil, locate(err, lineNo)
	}
	if err := parseWhere(fields[1], event); err != nil {
		return nil, locate(err, lineNo)
	}
	if err := parseWho(fields[2], event); err != nil {
		return nil, locate(err, lineNo)
	}
	if err := parseWhat(fields[3], event); err != nil {
		return nil, locate(err, lineNo)
	}
	if err := event.Validate(); err != nil {
		return nil, locate(err, lineNo)
	}
	return event, nil
}

// ParseDocument parses a whole CCDL document: a leading event-count line,
// then one event per line, with blank lines and '#' comments skipped. Failed
// lines do not stop the scan; every finding is collected so a run reports
// them all. In lenient mode bad lines become warnings and parsing of the
// rest proceeds; in strict mode they are errors.
func ParseDocument(text string, mode domain.Mode) ([]domain.CampaignEvent, *domain.Diagnostics) {
	diags := &domain.Diagnostics{}
	report := diags.AddError
	if mode == domain.ModeLenient {
		report = diags.AddWarning
	}

	var events []domain.CampaignEvent
	declared := -1
	sawCount := false
	eventLines := 0

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !sawCount {
			sawCount = true
			n, err := strconv.Atoi(line)
			if err != nil {
				diags.AddError(domain.ErrMalformedLine("first line must be the decimal event count").
					WithLine(lineNo).WithFragment(line))
				// Fall through and treat the line as an event so the
				// rest of the document is still checked.
			} else {
				declared = n
				continue
			}
		}
		eventLines++
		event, err := ParseLine(line, lineNo)
		if err != nil {
			report(asTranslationError(err))
			continue
		}
		events = append(events, *event)
	}

	if declared >= 0 && declared != eventLines {
		diags.AddError(domain.ErrMalformedLine(
			"declared event count " + strconv.Itoa(declared) +
				" does not match " + strconv.Itoa(eventLines) + " event line(s)"))
	}
	return events, diags
}

func asTranslationError(err error) *domain.TranslationError {
	if terr, ok := err.(*domain.TranslationError); ok {
		return terr
	}
	return domain.ErrMalformedLine(err.Error())
}

// locate stamps the line number onto an error that does not carry one yet.
func locate(err error, lineNo int) error {
	terr := asTranslationError(err)
	if terr.Line < 0 {
		terr.WithLine(lineNo)
	}
	return terr
}

// parseWhen handles <day>, <day>(x<reps>/_<interval>), and an optional
// -<limit> suffix.
func parseWhen(s string, event *domain.CampaignEvent) error {
	rest := s
	if i := strings.IndexByte(s, '('); i >= 0 {
		j := strings.IndexByte(s, ')')
		if j < i {
			return domain.ErrMalformedLine("unterminated repetition spec").WithFragment(s)
		}
		day, err := strconv.Atoi(strings.TrimSpace(s[:i]))
		if err != nil {
			return domain.ErrMalformedLine("start day is not an integer").WithFragment(s[:i])
		}
		event.StartDay = day

		inner := s[i+1 : j]
		if !strings.HasPrefix(inner, "x") {
			return domain.ErrMalformedLine("repetition spec must look like (xN/_M)").WithFragment(inner)
		}
		parts := strings.SplitN(inner[1:], "/_", 2)
		if len(parts) != 2 {
			return domain.ErrMalformedLine("repetition spec must look like (xN/_M)").WithFragment(inner)
		}
		reps, err := strconv.Atoi(parts[0])
		if err != nil || reps < 1 {
			return domain.ErrMalformedLine("repeat count must be a positive integer").WithFragment(inner)
		}
		gap, err := strconv.Atoi(parts[1])
		if err != nil || gap < 1 {
			return domain.ErrMalformedLine("repeat interval must be a positive integer").WithFragment(inner)
		}
		event.RepeatCount = reps
		event.RepeatInterval = gap
		rest = s[j+1:]
	} else if i := strings.IndexByte(s, '-'); i > 0 {
		day, err := strconv.Atoi(strings.TrimSpace(s[:i]))
		if err != nil {
			return domain.ErrMalformedLine("start day is not an integer").WithFragment(s[:i])
		}
		event.StartDay = day
		rest = s[i:]
	} else {
		day, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return domain.ErrMalformedLine("start day is not an integer").WithFragment(s)
		}
		event.StartDay = day
		return nil
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	if !strings.HasPrefix(rest, "-") {
		return domain.ErrMalformedLine("unexpected trailing text after When field").WithFragment(rest)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(rest[1:]))
	if err != nil {
		return domain.ErrMalformedLine("duration limit is not an integer").WithFragment(rest)
	}
	if limit <= event.StartDay {
		return domain.ErrTargetingRange("duration limit must be after the start day")
	}
	event.DurationLimit = limit
	return nil
}

// parseWhere handles the AllPlaces sentinel and explicit node lists, with or
// without surrounding brackets.
func parseWhere(s string, event *domain.CampaignEvent) error {
	if strings.Contains(s, "All") {
		event.NodeSet = domain.NodeSetSpec{AllPlaces: true}
		return nil
	}
	list := strings.Trim(s, "[]")
	seen := make(map[int]bool)
	for _, tok := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.Atoi(tok)
		if err != nil {
			return domain.ErrMalformedLine("node identifier is not an integer").WithFragment(tok)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		event.NodeSet.Nodes = append(event.NodeSet.Nodes, id)
	}
	if len(event.NodeSet.Nodes) == 0 {
		return domain.ErrMalformedLine("Where field names no nodes").WithFragment(s)
	}
	return nil
}

// parseWho handles '/'-delimited targeting clauses. An empty field leaves
// every default in place: 100% coverage, any sex, no age bounds.
func parseWho(s string, event *domain.CampaignEvent) error {
	if s == "" {
		return nil
	}
	for _, clause := range strings.Split(s, ClauseSep) {
		clause = strings.TrimSpace(clause)
		switch {
		case clause == "":
			return domain.ErrMalformedLine("empty targeting clause").WithFragment(s)

		case clause == Steered:
			event.Targeting.Steered = true

		case strings.HasSuffix(clause, "%"):
			cov, err := strconv.ParseFloat(strings.TrimSuffix(clause, "%"), 64)
			if err != nil {
				return domain.ErrMalformedLine("coverage is not a number").WithFragment(clause)
			}
			if cov < 0 || cov > 100 {
				return domain.ErrTargetingRange("coverage must be within [0,100]").WithFragment(clause)
			}
			event.Targeting.Coverage = cov

		case clause == string(domain.SexMale):
			event.Targeting.Sex = domain.SexMale

		case clause == string(domain.SexFemale):
			event.Targeting.Sex = domain.SexFemale

		case strings.HasPrefix(clause, ">"):
			age, err := strconv.ParseFloat(clause[1:], 64)
			if err != nil {
				return domain.ErrMalformedLine("minimum age is not a number").WithFragment(clause)
			}
			event.Targeting.MinAge = &age

		case strings.HasPrefix(clause, "<"):
			age, err := strconv.ParseFloat(clause[1:], 64)
			if err != nil {
				return domain.ErrMalformedLine("maximum age is not a number").WithFragment(clause)
			}
			event.Targeting.MaxAge = &age

		case strings.ContainsAny(clause, "=:"):
			// One clause may carry several comma-separated filters.
			for _, pair := range strings.Split(clause, ",") {
				key, value, ok := splitPair(pair)
				if !ok {
					return domain.ErrMalformedLine("property filter must look like key=value").WithFragment(pair)
				}
				event.Targeting.Properties = append(event.Targeting.Properties,
					domain.PropertyFilter{Key: key, Value: value})
			}

		default:
			return domain.ErrMalformedLine("unrecognized targeting clause").WithFragment(clause)
		}
	}
	return nil
}

func splitPair(s string) (key, value string, ok bool) {
	sep := strings.IndexAny(s, "=:")
	if sep <= 0 || sep == len(s)-1 {
		return "", "", false
	}
	return strings.TrimSpace(s[:sep]), strings.TrimSpace(s[sep+1:]), true
}

// parseWhat detects the trigger arrow before chain composition, then parses
// the chain.
func parseWhat(s string, event *domain.CampaignEvent) error {
	if s == "" {
		return domain.ErrMalformedLine("What field is empty")
	}

	chainText := s
	if i := indexTop(s, TriggerSep); i >= 0 {
		event.Action.Kind = domain.ActionTriggered
		for _, sig := range splitTop(s[:i], SimultaneousSep) {
			sig = strings.TrimSpace(sig)
			if sig == "" {
				return domain.ErrUnknownTrigger("empty trigger signal").WithFragment(s[:i])
			}
			event.Action.Signals = append(event.Action.Signals, sig)
		}
		chainText = s[i+len(TriggerSep):]
	} else {
		event.Action.Kind = domain.ActionScheduled
	}

	chain, err := parseChain(chainText)
	if err != nil {
		return err
	}
	event.Action.Chain = chain
	return nil
}

// parseChain splits on delay edges first, then on simultaneous nodes within
// each delay segment. A DelayedIntervention pseudo node supplies the
// DelaySpec for the edge that follows it; an edge without one gets the
// engine's zero-delay default.
func parseChain(s string) (domain.InterventionChain, error) {
	var chain domain.InterventionChain
	var pending *domain.DelaySpec

	rawSegs := splitTop(s, DelaySep)
	for _, raw := range rawSegs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return chain, domain.ErrMalformedLine("empty chain segment").WithFragment(s)
		}

		var nodes []domain.InterventionNode
		var nextDelay *domain.DelaySpec
		for _, text := range splitTop(raw, SimultaneousSep) {
			text = strings.TrimSpace(text)
			if text == "" {
				return chain, domain.ErrMalformedLine("empty intervention in chain").WithFragment(raw)
			}
			node, err := parseNode(text)
			if err != nil {
				return chain, err
			}
			if node.Name == DelayClass {
				if nextDelay != nil {
					return chain, domain.ErrMalformedLine("segment carries more than one delay spec").WithFragment(raw)
				}
				delay, err := parseDelay(node.Param)
				if err != nil {
					return chain, err
				}
				nextDelay = delay
				continue
			}
			nodes = append(nodes, node)
		}

		if len(nodes) > 0 {
			delay := pending
			if delay == nil && len(chain.Segments) > 0 {
				delay = zeroDelay()
			}
			chain.Segments = append(chain.Segments, domain.ChainSegment{Delay: delay, Nodes: nodes})
			pending = nil
		} else if nextDelay == nil {
			return chain, domain.ErrMalformedLine("chain segment has no interventions").WithFragment(raw)
		}

		if nextDelay != nil {
			if pending != nil {
				return chain, domain.ErrMalformedLine("consecutive delay edges with no intervention between them").WithFragment(s)
			}
			pending = nextDelay
		}
	}

	if pending != nil {
		return chain, domain.ErrMalformedLine("chain ends on a dangling delay edge").WithFragment(s)
	}
	if len(chain.Segments) == 0 {
		return chain, domain.ErrMalformedLine("empty intervention chain").WithFragment(s)
	}
	return chain, nil
}

// parseNode splits an intervention token into name plus optional primary
// parameter: Name, Name(param), Name{a: p, b: q}, or Name({a: p, b: q}).
func parseNode(s string) (domain.InterventionNode, error) {
	var node domain.InterventionNode
	switch {
	case strings.ContainsRune(s, '('):
		i := strings.IndexByte(s, '(')
		if !strings.HasSuffix(s, ")") {
			return node, domain.ErrMalformedLine("malformed parenthetical").WithFragment(s)
		}
		node.Name = strings.TrimSpace(s[:i])
		inner := s[i+1 : len(s)-1]
		if strings.HasPrefix(strings.TrimSpace(inner), "{") {
			choices, err := parseChoices(inner)
			if err != nil {
				return node, err
			}
			node.Choices = choices
		} else {
			node.Param = strings.TrimSpace(inner)
		}

	case strings.ContainsRune(s, '{'):
		i := strings.IndexByte(s, '{')
		if !strings.HasSuffix(s, "}") {
			return node, domain.ErrMalformedLine("malformed weighted-choice map").WithFragment(s)
		}
		node.Name = strings.TrimSpace(s[:i])
		choices, err := parseChoices(s[i:])
		if err != nil {
			return node, err
		}
		node.Choices = choices

	default:
		node.Name = s
	}

	if node.Name == "" {
		return node, domain.ErrMalformedLine("intervention has no name").WithFragment(s)
	}
	return node, nil
}

// parseChoices parses "{name: prob, name: prob}" into an ordered list.
func parseChoices(s string) ([]domain.WeightedChoice, error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, domain.ErrMalformedLine("malformed weighted-choice map").WithFragment(s)
	}
	body = body[1 : len(body)-1]

	var choices []domain.WeightedChoice
	for _, pair := range strings.Split(body, ",") {
		name, probText, ok := splitPair(pair)
		if !ok {
			return nil, domain.ErrMalformedLine("weighted choice must look like name: probability").WithFragment(pair)
		}
		prob, err := strconv.ParseFloat(probText, 64)
		if err != nil {
			return nil, domain.ErrMalformedLine("weighted-choice probability is not a number").WithFragment(pair)
		}
		choices = append(choices, domain.WeightedChoice{Name: name, Probability: prob})
	}
	if len(choices) == 0 {
		return nil, domain.ErrMalformedLine("weighted-choice map is empty").WithFragment(s)
	}
	return choices, nil
}

// parseDelay parses "<dist>/<params...>" from a DelayedIntervention
// parenthetical. An empty spec is the engine default of a fixed zero delay.
func parseDelay(param string) (*domain.DelaySpec, error) {
	if param == "" {
		return zeroDelay(), nil
	}
	parts := strings.Split(param, "/")
	dist := domain.DelayDistribution(strings.TrimSpace(parts[0]))
	if !domain.KnownDelayDistribution(dist) {
		return nil, domain.ErrUnknownDistribution(string(dist))
	}

	var params []float64
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, domain.ErrMalformedLine("delay parameter is not a number").WithFragment(p)
		}
		params = append(params, v)
	}

	want := 2
	if dist == domain.DelayFixed || dist == domain.DelayExponential {
		want = 1
	}
	if dist == domain.DelayUniform && len(params) == 1 {
		// A lone value is the maximum; the minimum defaults to zero.
		params = []float64{0, params[0]}
	}
	if len(params) != want {
		return nil, domain.ErrMalformedLine("wrong number of delay parameters for " + string(dist)).WithFragment(param)
	}
	return &domain.DelaySpec{Distribution: dist, Params: params}, nil
}

func zeroDelay() *domain.DelaySpec {
	return &domain.DelaySpec{Distribution: domain.DelayFixed, Params: []float64{0}}
}

// splitTop splits on sep, ignoring separators nested inside parentheses or
// braces.
func splitTop(s, sep string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			out = append(out, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(out, s[start:])
}

// indexTop returns the index of the first top-level occurrence of sep, or -1.
func indexTop(s, sep string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			return i
		}
	}
	return -1
}
