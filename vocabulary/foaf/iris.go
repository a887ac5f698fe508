// Package foaf holds FOAF class and property IRIs. Its namespace backs the
// "foaf" prefix of the default registry.
package foaf

import "github.com/cayleygraph/quad"

// Namespace is the FOAF namespace IRI.
const Namespace = "http://xmlns.com/foaf/0.1/"

// Class IRIs.
const (
	// Agent is anything that can act.
	Agent = quad.IRI(Namespace + "Agent")

	// Person is a human agent.
	// Extends: Agent
	Person = quad.IRI(Namespace + "Person")

	// Organization is a social institution.
	// Extends: Agent
	Organization = quad.IRI(Namespace + "Organization")

	// Group is a collection of agents.
	Group = quad.IRI(Namespace + "Group")

	// Document is any document.
	Document = quad.IRI(Namespace + "Document")
)

// Property IRIs.
const (
	Name       = quad.IRI(Namespace + "name")
	GivenName  = quad.IRI(Namespace + "givenName")
	FamilyName = quad.IRI(Namespace + "familyName")
	Nick       = quad.IRI(Namespace + "nick")
	Knows      = quad.IRI(Namespace + "knows")
	Mbox       = quad.IRI(Namespace + "mbox")
	Age        = quad.IRI(Namespace + "age")
	Member     = quad.IRI(Namespace + "member")
	Homepage   = quad.IRI(Namespace + "homepage")
)
