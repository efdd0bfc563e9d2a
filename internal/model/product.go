package model

import (
	"fmt"
	"strings"
)

// ProductType is an insurance product category.
type ProductType string

const (
	ProductHealth  ProductType = "health"
	ProductVehicle ProductType = "vehicle"
	ProductHouse   ProductType = "house"
	ProductTravel  ProductType = "travel"
	ProductLife    ProductType = "life"
)

// Products lists every product in display order.
var Products = []ProductType{ProductHealth, ProductLife, ProductTravel, ProductHouse, ProductVehicle}

// ParseProduct accepts any casing of a product name or backend code.
func ParseProduct(s string) (ProductType, error) {
	p := ProductType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Products {
		if p == known {
			return p, nil
		}
	}
	return "", &ConfigurationError{Kind: UnknownProduct, Value: s}
}

// Code is the upper-case policy type sent to the recommendation backend.
func (p ProductType) Code() string {
	return strings.ToUpper(string(p))
}

// Country is a supported market, keyed by its two-letter code.
type Country string

const (
	CountryIndia     Country = "IN"
	CountryAustralia Country = "AU"
)

// Countries lists the supported markets.
var Countries = []Country{CountryIndia, CountryAustralia}

var countryNames = map[Country]string{
	CountryIndia:     "INDIA",
	CountryAustralia: "AUSTRALIA",
}

// ParseCountry accepts a two-letter code or the full country name.
func ParseCountry(s string) (Country, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for code, name := range countryNames {
		if v == string(code) || v == name {
			return code, nil
		}
	}
	return "", &ConfigurationError{Kind: UnknownCountry, Value: s}
}

// BackendName is the country value the recommendation backend expects.
func (c Country) BackendName() string {
	if name, ok := countryNames[c]; ok {
		return name
	}
	return string(c)
}

func (c Country) String() string { return string(c) }

// SchemaKey identifies a schema variant.
type SchemaKey struct {
	Product ProductType
	Country Country
}

func (k SchemaKey) String() string {
	return fmt.Sprintf("%s/%s", k.Country, k.Product)
}
