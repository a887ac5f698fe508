package vocabulary

import (
	ssvocab "github.com/c360studio/semstreams/vocabulary"
	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/voc/rdf"
)

// Annotation predicates shared by every resource regardless of its classes.
// They back the built-in resource view.
var (
	RDFType       = quad.IRI(rdf.NS + "type")
	RDFSLabel     = quad.IRI(ssvocab.RdfsLabel)
	RDFSComment   = quad.IRI(ssvocab.RdfsComment)
	OWLSameAs     = quad.IRI(ssvocab.OwlSameAs)
	SKOSPrefLabel = quad.IRI(ssvocab.SkosPrefLabel)
	DCTitle       = quad.IRI(ssvocab.DcTitle)
	DCIdentifier  = quad.IRI(ssvocab.DcIdentifier)
	ProvAttrib    = quad.IRI(ssvocab.ProvWasAttributedTo)
)
