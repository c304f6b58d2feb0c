// Package codec defines the contract shared by the two campaign
// representations: the CCDL text codec and the campaign JSON codec. Either
// side decodes its format into the grammar model and encodes the model back
// out; the model is the only currency between them.
package codec

import "github.com/epiforge/ccdl/internal/domain"

// Decoder turns one external representation into grammar-model events.
// Findings are collected per event so a run reports all of them; under
// ModeLenient unsupported events become warnings and decoding continues.
type Decoder interface {
	Name() string
	Decode(data []byte, mode domain.Mode) ([]domain.CampaignEvent, *domain.Diagnostics)
}

// Encoder turns grammar-model events into one external representation.
// Encoding fails as a whole on the first fatal error; no partial document is
// returned.
type Encoder interface {
	Name() string
	Encode(events []domain.CampaignEvent) ([]byte, error)
}
