package analyses

import (
	"errors"
	"testing"
)

func TestValidateParamsDefaults(t *testing.T) {
	got, err := validateParams(Params{Country: "us"})
	if err != nil {
		t.Fatalf("validateParams: %v", err)
	}
	if got.Country != "US" {
		t.Fatalf("expected uppercased country, got %s", got.Country)
	}
	if got.Language != "en" {
		t.Fatalf("expected default language en, got %s", got.Language)
	}
	if got.Limit != defaultResultLimit {
		t.Fatalf("expected default limit %d, got %d", defaultResultLimit, got.Limit)
	}
}

func TestValidateParamsNormalizesCase(t *testing.T) {
	got, err := validateParams(Params{Country: " fr ", Language: " FR ", Limit: 50})
	if err != nil {
		t.Fatalf("validateParams: %v", err)
	}
	if got.Country != "FR" || got.Language != "fr" || got.Limit != 50 {
		t.Fatalf("unexpected params: %+v", got)
	}
}

func TestValidateParamsRejectsMissingCountry(t *testing.T) {
	_, err := validateParams(Params{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateParamsRejectsUnsupportedCountry(t *testing.T) {
	_, err := validateParams(Params{Country: "ZZ"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateParamsClampsLimit(t *testing.T) {
	got, err := validateParams(Params{Country: "US", Limit: 5000})
	if err != nil {
		t.Fatalf("validateParams: %v", err)
	}
	if got.Limit != maxResultLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxResultLimit, got.Limit)
	}
}
