package analyses

import (
	"fmt"
	"strings"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 1000
	defaultLanguage    = "en"
)

// supportedCountries is the set of 2-letter codes the provider accepts.
var supportedCountries = map[string]struct{}{
	"US": {}, "GB": {}, "FR": {}, "DE": {}, "ES": {}, "IT": {}, "NL": {},
	"BE": {}, "CH": {}, "CA": {}, "AU": {}, "BR": {}, "PT": {}, "PL": {},
	"SE": {}, "NO": {}, "DK": {}, "FI": {}, "IE": {}, "AT": {}, "JP": {},
	"IN": {}, "MX": {},
}

// Params are the immutable input parameters of an analysis.
type Params struct {
	Country  string
	Language string
	Limit    int
}

// validateParams normalizes and validates input parameters before any
// record is created.
func validateParams(p Params) (Params, error) {
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	if p.Country == "" {
		return Params{}, fmt.Errorf("%w: country is required", ErrValidation)
	}
	if _, ok := supportedCountries[p.Country]; !ok {
		return Params{}, fmt.Errorf("%w: unsupported country code %q", ErrValidation, p.Country)
	}

	p.Language = strings.ToLower(strings.TrimSpace(p.Language))
	if p.Language == "" {
		p.Language = defaultLanguage
	}

	if p.Limit <= 0 {
		p.Limit = defaultResultLimit
	}
	if p.Limit > maxResultLimit {
		p.Limit = maxResultLimit
	}
	return p, nil
}
