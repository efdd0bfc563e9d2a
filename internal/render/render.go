// Package render turns a recommendation result into tier offers ready for
// display.
package render

import (
	"strings"

	"quote-wizard/internal/currency"
	"quote-wizard/internal/model"
)

const (
	highConfidence   = 0.7
	mediumConfidence = 0.4

	// LowConfidenceThreshold triggers the advisory when the recommended
	// tier scores below it.
	LowConfidenceThreshold = 0.5
)

// Display is everything the results page shows.
type Display struct {
	Offers         []model.TierOffer `json:"offers"`
	LowConfidence  bool              `json:"low_confidence"`
	WhyRecommended string            `json:"why_recommended,omitempty"`
	PolicyType     string            `json:"policy_type,omitempty"`
	Currency       string            `json:"currency"`
	Empty          bool              `json:"empty"`
}

// Render never fails. A nil result or one without tiers gives an empty
// display.
func Render(result *model.RecommendationResult, profile model.CurrencyProfile) Display {
	d := Display{Offers: []model.TierOffer{}, Currency: profile.Code}
	if result == nil || len(result.AllTiers) == 0 {
		d.Empty = true
		return d
	}
	d.WhyRecommended = result.WhyRecommended
	d.PolicyType = result.PolicyType

	for _, tier := range result.AllTiers {
		conf := result.Confidence[strings.ToLower(tier.Name)]
		offer := model.TierOffer{
			TierName:       tier.Name,
			Price:          tier.Price,
			PriceText:      currency.Format(profile, tier.Price),
			IsRecommended:  strings.EqualFold(tier.Name, result.RecommendedTier),
			Confidence:     conf,
			ShowConfidence: conf > 0,
			Explanation:    result.Explanation[tier.Name],
		}
		if offer.ShowConfidence {
			offer.ConfidenceLevel = Level(conf)
		}
		if offer.IsRecommended && conf < LowConfidenceThreshold {
			d.LowConfidence = true
		}
		d.Offers = append(d.Offers, offer)
	}
	return d
}

// Level buckets a confidence score.
func Level(c float64) model.ConfidenceLevel {
	switch {
	case c > highConfidence:
		return model.ConfidenceHigh
	case c > mediumConfidence:
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}
