// Package regnumber issues human-readable registration numbers such as
// LEA-2026-0007. Counters are kept per entity kind and calendar year.
package regnumber

import (
	"context"
	"fmt"
	"time"
)

// Kind is the entity a registration number is issued for.
type Kind string

const (
	KindPipeline    Kind = "pipeline"
	KindLead        Kind = "lead"
	KindOpportunity Kind = "opportunity"
	KindQuote       Kind = "quote"
	KindContract    Kind = "contract"
)

var prefixes = map[Kind]string{
	KindPipeline:    "PIP",
	KindLead:        "LEA",
	KindOpportunity: "OPP",
	KindQuote:       "QUO",
	KindContract:    "CON",
}

// Generator yields the next registration number for kind. An empty string
// without error means the caller-supplied number should be kept.
type Generator interface {
	Next(ctx context.Context, kind Kind) (string, error)
}

// Apply returns the generated number, falling back to supplied when the
// generator yields nothing.
func Apply(ctx context.Context, gen Generator, kind Kind, supplied *string) (*string, error) {
	if gen == nil {
		return supplied, nil
	}
	generated, err := gen.Next(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("generate %s registration number: %w", kind, err)
	}
	if generated == "" {
		return supplied, nil
	}
	return &generated, nil
}

// Format renders a counter value for kind in year.
func Format(kind Kind, year, n int) string {
	prefix, ok := prefixes[kind]
	if !ok {
		prefix = "REG"
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, n)
}

// Noop never generates; callers keep their own numbers.
type Noop struct{}

// Next always returns "".
func (Noop) Next(context.Context, Kind) (string, error) { return "", nil }

type clock func() time.Time
