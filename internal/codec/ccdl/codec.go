// Package ccdl adapts the grammar parser and renderer to the codec
// contract, so the translator can treat CCDL text and campaign JSON
// symmetrically.
package ccdl

import (
	"github.com/epiforge/ccdl/internal/codec"
	"github.com/epiforge/ccdl/internal/domain"
	"github.com/epiforge/ccdl/internal/grammar"
)

// Codec implements codec.Decoder and codec.Encoder for CCDL text.
type Codec struct{}

// New creates a new CCDL text codec.
func New() *Codec {
	return &Codec{}
}

// Name returns the codec name.
func (c *Codec) Name() string {
	return "ccdl"
}

// Decode parses a CCDL document into grammar-model events.
func (c *Codec) Decode(data []byte, mode domain.Mode) ([]domain.CampaignEvent, *domain.Diagnostics) {
	return grammar.ParseDocument(string(data), mode)
}

// Encode renders grammar-model events as a CCDL document, count line first.
func (c *Codec) Encode(events []domain.CampaignEvent) ([]byte, error) {
	return []byte(grammar.RenderDocument(events)), nil
}

var (
	_ codec.Decoder = (*Codec)(nil)
	_ codec.Encoder = (*Codec)(nil)
)
