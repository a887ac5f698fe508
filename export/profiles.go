// Package export serializes facts held by a session or a store to RDF
// documents, optionally aligning every exported resource with upper
// ontology classes.
package export

import (
	"github.com/cayleygraph/quad"

	ssvocab "github.com/c360studio/semstreams/vocabulary"
	"github.com/c360studio/semstreams/vocabulary/bfo"
	"github.com/c360studio/semstreams/vocabulary/cco"

	"github.com/c360studio/semmap/graph"
)

// Profile determines which alignment type assertions are added to the export.
type Profile string

const (
	// ProfileMinimal exports the facts as they are.
	ProfileMinimal Profile = "minimal"

	// ProfilePROV asserts prov:Entity on every named resource.
	ProfilePROV Profile = "prov"

	// ProfileBFO includes BFO type assertions plus the PROV profile.
	ProfileBFO Profile = "bfo"

	// ProfileCCO includes CCO type assertions plus the BFO profile.
	ProfileCCO Profile = "cco"
)

// ProfileConfig contains configuration for an export profile.
type ProfileConfig struct {
	// Name is the profile identifier.
	Name Profile

	// Description describes the profile.
	Description string

	// IncludePROV indicates whether to include PROV-O type assertions.
	IncludePROV bool

	// IncludeBFO indicates whether to include BFO type assertions.
	IncludeBFO bool

	// IncludeCCO indicates whether to include CCO type assertions.
	IncludeCCO bool
}

// Profiles contains the configuration for all available export profiles.
var Profiles = map[Profile]ProfileConfig{
	ProfileMinimal: {
		Name:        ProfileMinimal,
		Description: "Facts only, no alignment",
	},
	ProfilePROV: {
		Name:        ProfilePROV,
		Description: "Resources asserted as prov:Entity",
		IncludePROV: true,
	},
	ProfileBFO: {
		Name:        ProfileBFO,
		Description: "BFO type assertions plus PROV profile",
		IncludePROV: true,
		IncludeBFO:  true,
	},
	ProfileCCO: {
		Name:        ProfileCCO,
		Description: "Full CCO/BFO/PROV-O alignment",
		IncludePROV: true,
		IncludeBFO:  true,
		IncludeCCO:  true,
	},
}

// GetProfileConfig returns the configuration for a profile. Unknown profiles
// fall back to minimal.
func GetProfileConfig(profile Profile) ProfileConfig {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	return Profiles[ProfileMinimal]
}

// TypeAsserter generates alignment type assertions based on a profile.
type TypeAsserter struct {
	profile ProfileConfig
}

// NewTypeAsserter creates a new type asserter for the given profile.
func NewTypeAsserter(profile Profile) *TypeAsserter {
	return &TypeAsserter{
		profile: GetProfileConfig(profile),
	}
}

// TypeIRIs returns the alignment classes asserted on every named resource.
// Mapped entities are information artifacts, so each layer contributes the
// class for copyable information.
func (t *TypeAsserter) TypeIRIs() []quad.IRI {
	types := make([]quad.IRI, 0, 3)
	if t.profile.IncludePROV {
		types = append(types, quad.IRI(ssvocab.ProvEntity))
	}
	if t.profile.IncludeBFO {
		types = append(types, quad.IRI(bfo.GenericallyDependentContinuant))
	}
	if t.profile.IncludeCCO {
		types = append(types, quad.IRI(cco.InformationContentEntity))
	}
	return types
}

// TypeFacts returns the alignment rdf:type facts for id. Blank nodes are
// never aligned.
func (t *TypeAsserter) TypeFacts(id graph.EntityID) []graph.Fact {
	if id.IsBlank() {
		return nil
	}
	types := t.TypeIRIs()
	facts := make([]graph.Fact, 0, len(types))
	for _, typeIRI := range types {
		facts = append(facts, graph.NewFact(id, graph.RDFType, typeIRI))
	}
	return facts
}

// ClassDescriptions provides human-readable descriptions for alignment classes.
var ClassDescriptions = map[quad.IRI]string{
	quad.IRI(ssvocab.ProvEntity):                 "Thing with fixed aspects",
	quad.IRI(bfo.GenericallyDependentContinuant): "Information patterns that can be copied",
	quad.IRI(cco.InformationContentEntity):       "Root class for information entities",
}
