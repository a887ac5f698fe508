package convert

import (
	"testing"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semmap/graph"
)

func TestFallback_Convert(t *testing.T) {
	c := NewFallback()
	when := time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   quad.Value
		want any
	}{
		{"plain string", quad.String("Tomasz"), "Tomasz"},
		{"language string", quad.LangString{Value: "Tomasz", Lang: "pl"}, "Tomasz"},
		{"xsd string", typed("x", XSDString), "x"},
		{"integer", typed("42", XSDInteger), int64(42)},
		{"compact xsd type", quad.TypedString{Value: "7", Type: "xsd:int"}, int64(7)},
		{"double", typed("1.5", XSDDouble), 1.5},
		{"boolean", typed("true", XSDBoolean), true},
		{"date time", typed("2014-03-01T12:00:00Z", XSDDateTime), when},
		{"unknown datatype keeps lexical form", typed("abc", "http://example.com/custom"), "abc"},
		{"iri", quad.IRI("http://magi/people/Karol"), graph.MustID("http://magi/people/Karol")},
		{"blank", quad.BNode("b1"), graph.BlankID("b1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Convert(tt.in, Context{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallback_ConvertBadLexical(t *testing.T) {
	_, err := NewFallback().Convert(typed("forty", XSDInteger), Context{})
	assert.ErrorIs(t, err, ErrConversion)
}

func TestFallback_ConvertBack(t *testing.T) {
	c := NewFallback()

	v, err := c.ConvertBack("Tomasz", Context{})
	require.NoError(t, err)
	assert.Equal(t, quad.String("Tomasz"), v)

	v, err = c.ConvertBack("Tomasz", Context{Language: "pl"})
	require.NoError(t, err)
	assert.Equal(t, quad.LangString{Value: "Tomasz", Lang: "pl"}, v)

	v, err = c.ConvertBack(30, Context{})
	require.NoError(t, err)
	assert.Equal(t, typed("30", XSDInteger), v)

	v, err = c.ConvertBack(graph.MustID("http://magi/people/Karol"), Context{})
	require.NoError(t, err)
	assert.Equal(t, quad.IRI("http://magi/people/Karol"), v)

	_, err = c.ConvertBack(struct{}{}, Context{})
	assert.ErrorIs(t, err, ErrConversion)
}

type upperConverter struct{}

func (upperConverter) Match(v quad.Value) Match {
	if dt, ok := Datatype(v); ok && dt == "http://example.com/upper" {
		return DatatypeMatch
	}
	return NoMatch
}

func (upperConverter) Convert(v quad.Value, _ Context) (any, error) {
	return "UPPER", nil
}

func TestFallback_BestMatchWins(t *testing.T) {
	c := NewFallback(upperConverter{})
	got, err := c.Convert(typed("x", "http://example.com/upper"), Context{})
	require.NoError(t, err)
	assert.Equal(t, "UPPER", got, "datatype match beats generic string match")
}
