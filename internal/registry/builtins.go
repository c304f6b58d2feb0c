package registry

import "strings"

// builtins is the closed table of primary-parameter conventions. The schema
// tells us which classes exist and their defaults; it does not say which
// field is the semantically important one, so that knowledge lives here.
var builtins = map[string]Descriptor{
	"OutbreakIndividual": {},
	"BroadcastEvent": {
		Primary: "Broadcast_Event",
	},
	"MigrateIndividuals": {
		Primary: "NodeID_To_Migrate_To",
	},
	"PropertyValueChanger": {
		Primary:   "Target_Property_Key",
		Secondary: "Target_Property_Value",
	},
	"SimpleHealthSeekingBehavior": {
		Primary:   "Actual_IndividualIntervention_Event",
		Secondary: "Tendency",
	},
	"HIVMuxer": {
		Primary: "Broadcast_Event",
	},
	"HIVRandomChoice": {
		Primary:        "Choices",
		WeightedChoice: true,
	},
	"PMTCT": {
		Primary: "Efficacy",
	},
	"AntimalarialDrug": {
		Primary: "Drug_Type",
	},

	// Structural classes: the codecs expand these into chain shape rather
	// than parameter notation.
	"DelayedIntervention":          {},
	"HIVDelayedIntervention":       {},
	"MultiInterventionDistributor": {},
	"NodeLevelHealthTriggeredIV":   {},
}

// builtinDescriptor returns the built-in descriptor for name, falling back
// to pattern rules for class families. Diagnostics and blood draws all carry
// positive/negative result events under the same field names.
func builtinDescriptor(name string) Descriptor {
	if desc, ok := builtins[name]; ok {
		desc.Name = name
		desc.Class = name
		return desc
	}
	if strings.Contains(name, "Diagnostic") || strings.Contains(name, "DrawBlood") {
		return Descriptor{
			Name:      name,
			Class:     name,
			Primary:   "Positive_Diagnosis_Event",
			Secondary: "Negative_Diagnosis_Event",
		}
	}
	return Descriptor{Name: name, Class: name}
}
