// Package normalize converts raw scraped text into typed listing fields.
// Every function is pure; a value that cannot be parsed is reported as nil.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"offerwatch/internal/model"
)

var (
	intToken = regexp.MustCompile(`\b\d+\b`)
	nonDigit = regexp.MustCompile(`\D`)
)

// Param is one term/definition pair from a listing parameter table.
type Param struct {
	Key   string
	Value string
}

// SplitPrice splits a raw price string into price and rent.
// A string containing "+" is read as "price + rent" and the first two integer
// tokens are taken in order. Otherwise the first integer token is the price
// and rent is nil.
func SplitPrice(raw string) (price, rent *model.Money) {
	tokens := intToken.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return nil, nil
	}

	price = money(tokens[0], model.CurrencyPLN)
	if strings.Contains(raw, "+") && len(tokens) > 1 {
		rent = money(tokens[1], model.CurrencyPLNMonthly)
	}
	return price, rent
}

func money(token, currency string) *model.Money {
	n, err := strconv.Atoi(token)
	if err != nil {
		return nil
	}
	return &model.Money{Amount: n, Currency: currency}
}

// CleanNumber strips every non-digit character and parses what remains.
// Decimal separators are dropped too, so "38,5" yields 385.
func CleanNumber(s string) *int {
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// SplitLocation derives city and region from a comma-delimited address such
// as "Street, District, City, Region". The last segment is the region and the
// one before it the candidate city; a candidate starting with a lower-case
// letter names a sub-district, so city is left nil.
func SplitLocation(address string) *model.Location {
	parts := strings.Split(address, ",")
	region := strings.TrimSpace(parts[len(parts)-1])
	if region == "" {
		return nil
	}

	loc := &model.Location{Region: region}
	if len(parts) < 2 {
		return loc
	}

	city := strings.TrimSpace(parts[len(parts)-2])
	first, _ := utf8.DecodeRuneInString(city)
	if city == "" || unicode.IsLower(first) {
		return loc
	}
	loc.City = &city
	return loc
}

// ParamValue returns the value of the first param whose key contains label.
func ParamValue(params []Param, label string) (string, bool) {
	for _, p := range params {
		if strings.Contains(p.Key, label) {
			return p.Value, true
		}
	}
	return "", false
}

// ParamNumber looks up label and runs the value through CleanNumber.
func ParamNumber(params []Param, label string) *int {
	v, ok := ParamValue(params, label)
	if !ok {
		return nil
	}
	return CleanNumber(v)
}
