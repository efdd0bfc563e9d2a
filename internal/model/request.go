package model

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
)

// QuoteRequest is the normalized body sent to the recommendation backend.
type QuoteRequest struct {
	Country    string
	PolicyType string
	Fields     map[string]any
}

// MarshalJSON flattens the request into one object. Output is canonical
// (RFC 8785) so equal requests encode to identical bytes.
func (r *QuoteRequest) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["country"] = r.Country
	flat["policy_type"] = r.PolicyType

	raw, err := json.Marshal(flat)
	if err != nil {
		return nil, err
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize request: %w", err)
	}
	return out, nil
}
