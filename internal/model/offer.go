package model

// ConfidenceLevel buckets a tier's confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// TierOffer is one rendered tier card.
type TierOffer struct {
	TierName        string          `json:"tier_name"`
	Price           float64         `json:"price"`
	PriceText       string          `json:"price_text"`
	IsRecommended   bool            `json:"is_recommended"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level,omitempty"`
	ShowConfidence  bool            `json:"show_confidence"`
	Explanation     string          `json:"explanation,omitempty"`
}

// CurrencyProfile describes how prices are shown for a country.
type CurrencyProfile struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Locale string `json:"locale"`
	Name   string `json:"name"`
}
