package normalization

import (
	"testing"
)

type testMode string

const (
	modeAlpha testMode = "alpha"
	modeBeta  testMode = "beta"
	modeGamma testMode = "gamma"
)

func testNormalizer() *Normalizer[testMode] {
	return NewNormalizer(map[string]testMode{
		"alpha": modeAlpha,
		"Beta":  modeBeta,
		"gamma": modeGamma,
	}, modeAlpha)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name     string
		input    string
		expected testMode
	}{
		{"exact match", "alpha", modeAlpha},
		{"case insensitive", "ALPHA", modeAlpha},
		{"mixed case key", "beta", modeBeta},
		{"with spaces", "  gamma  ", modeGamma},
		{"unknown falls back", "delta", modeAlpha},
		{"empty falls back", "", modeAlpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_NormalizeWithError(t *testing.T) {
	n := testNormalizer()

	got, err := n.NormalizeWithError(" GAMMA ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != modeGamma {
		t.Fatalf("got %v, want %v", got, modeGamma)
	}

	_, err = n.NormalizeWithError("delta")
	if err == nil {
		t.Fatal("expected error for unknown value")
	}
	want := `invalid value "delta", valid options: [alpha beta gamma]`
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestNormalizer_Lookup(t *testing.T) {
	n := testNormalizer()

	if v, ok := n.Lookup("Beta"); !ok || v != modeBeta {
		t.Fatalf("Lookup(Beta) = %v, %v", v, ok)
	}
	if _, ok := n.Lookup("delta"); ok {
		t.Fatal("Lookup(delta) reported a match")
	}
}

func TestNormalizer_ValidKeysIsACopy(t *testing.T) {
	n := testNormalizer()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	if n.ValidKeys()[0] != "alpha" {
		t.Fatal("ValidKeys exposed internal state")
	}
}
