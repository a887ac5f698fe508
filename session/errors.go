package session

import (
	"errors"
	"fmt"

	"github.com/c360studio/semmap/convert"
	"github.com/c360studio/semmap/graph"
)

// Session errors.
var (
	// ErrNoBaseURI is returned when a relative identifier is used and no
	// base URI policy is configured.
	ErrNoBaseURI = fmt.Errorf("%w: no base uri policy configured", graph.ErrRelativeID)

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrCardinality is returned when a single-result query does not yield
	// exactly one entity.
	ErrCardinality = errors.New("cardinality violation")

	// ErrNoResults is returned when a single-result query matched nothing
	// and no default was allowed.
	ErrNoResults = fmt.Errorf("%w: sequence contains no elements", ErrCardinality)

	// ErrMultipleResults is returned when a single-result query matched more
	// than one entity.
	ErrMultipleResults = fmt.Errorf("%w: sequence contains more than one element", ErrCardinality)

	// ErrCast is returned while enumerating results that cannot be viewed as
	// the cast target type.
	ErrCast = fmt.Errorf("%w: invalid cast", convert.ErrConversion)
)
