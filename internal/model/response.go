package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Tier is one coverage level with its price.
type Tier struct {
	Name  string
	Price float64
}

// Tiers keeps the backend's key order, which a Go map would lose.
type Tiers []Tier

func (t *Tiers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("all_tiers: expected object")
	}
	var out Tiers
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("all_tiers: expected tier name, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("all_tiers[%s]: %w", name, err)
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("all_tiers[%s]: expected a price, got %v", name, valTok)
		}
		price, err := num.Float64()
		if err != nil {
			return fmt.Errorf("all_tiers[%s]: %w", name, err)
		}
		out = append(out, Tier{Name: name, Price: price})
	}
	*t = out
	return nil
}

func (t Tiers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tier := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(tier.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(tier.Price)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Prediction is the "prediction" object of a recommendation response.
type Prediction struct {
	RecommendedTier string             `json:"recommended_tier"`
	AllTiers        Tiers              `json:"all_tiers"`
	Confidence      map[string]float64 `json:"confidence"`
	PolicyType      string             `json:"policytype,omitempty"`
}

// RecommendResponse is the wire shape returned by /recommend.
type RecommendResponse struct {
	Prediction  *Prediction    `json:"prediction"`
	Explanation map[string]any `json:"explanation"`
}

// RecommendationResult is a decoded, contract-checked recommendation.
type RecommendationResult struct {
	RecommendedTier string             `json:"recommended_tier"`
	AllTiers        Tiers              `json:"all_tiers"`
	Confidence      map[string]float64 `json:"confidence"`
	Explanation     map[string]string  `json:"explanation"`
	WhyRecommended  string             `json:"why_recommended,omitempty"`
	PolicyType      string             `json:"policy_type,omitempty"`
}

// Result converts the wire response. Non-string explanation entries are dropped.
func (r *RecommendResponse) Result() *RecommendationResult {
	if r == nil || r.Prediction == nil {
		return nil
	}
	res := &RecommendationResult{
		RecommendedTier: r.Prediction.RecommendedTier,
		AllTiers:        r.Prediction.AllTiers,
		Confidence:      r.Prediction.Confidence,
		Explanation:     map[string]string{},
		PolicyType:      r.Prediction.PolicyType,
	}
	for k, v := range r.Explanation {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == "why_recommended" {
			res.WhyRecommended = s
			continue
		}
		res.Explanation[k] = s
	}
	return res
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
