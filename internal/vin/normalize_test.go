package vin_test

import (
	"slices"
	"strings"
	"testing"

	"vinscan/internal/vin"
)

func collect(raw string) []string {
	return slices.Collect(vin.Normalize(raw))
}

func collectTokens(raw string, opts vin.Options) []vin.Token {
	return slices.Collect(vin.Extract(raw, opts))
}

func TestNormalizeSubstitutesConfusables(t *testing.T) {
	got := collect("ihgcm82633aoo4352")
	if len(got) != 1 || got[0] != "1HGCM82633A004352" {
		t.Fatalf("unexpected tokens: %v", got)
	}
	if !vin.Valid(got[0]) {
		t.Fatalf("expected substituted token to validate: %s", got[0])
	}
}

func TestNormalizeMatchesManualSubstitution(t *testing.T) {
	inputs := []string{
		"IHGCM82633AOO4352",
		"JH4KA7561PCOO8269",
		"JH4KA7561PCQQ8269",
		"1M8GDM9AXKPO42788",
	}
	manual := strings.NewReplacer("O", "0", "I", "1", "Q", "0")
	for _, raw := range inputs {
		tokens := collect(raw)
		if len(tokens) != 1 {
			t.Fatalf("%s: expected one token, got %v", raw, tokens)
		}
		direct := manual.Replace(raw)
		if tokens[0] != direct {
			t.Fatalf("%s: normalized %s, manual %s", raw, tokens[0], direct)
		}
		if vin.Valid(tokens[0]) != vin.Valid(direct) {
			t.Fatalf("%s: validation differs after normalization", raw)
		}
	}
}

func TestNormalizeStripsSeparators(t *testing.T) {
	got := collect(" 1HG-CM826:33A 004352 ")
	if len(got) != 1 || got[0] != "1HGCM82633A004352" {
		t.Fatalf("unexpected tokens: %v", got)
	}
}

func TestNormalizeEmitsEveryWindow(t *testing.T) {
	got := collect("X1HGCM82633A004352")
	want := []string{"X1HGCM82633A00435", "1HGCM82633A004352"}
	if !slices.Equal(got, want) {
		t.Fatalf("windows = %v, want %v", got, want)
	}
}

func TestNormalizeShortAndEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "1HGCM82633A00435", "1HGCM82*633A004352"} {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("%q: expected no tokens, got %v", raw, got)
		}
	}
}

func TestNormalizeFoldsFullWidth(t *testing.T) {
	got := collect("１ＨＧＣＭ８２６３３Ａ００４３５２")
	if len(got) != 1 || got[0] != "1HGCM82633A004352" {
		t.Fatalf("unexpected tokens: %v", got)
	}
}

func TestNormalizeStopsWhenConsumerStops(t *testing.T) {
	count := 0
	for range vin.Normalize("11111111111111111111111111") {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected iteration to stop after one token, got %d", count)
	}
}

func TestExtractLabelTextStripsMarker(t *testing.T) {
	tokens := collectTokens("VIN: 1HGCM82633A004352", vin.Options{LabelText: true})
	if len(tokens) != 1 {
		t.Fatalf("expected one token, got %+v", tokens)
	}
	tok := tokens[0]
	if tok.Value != "1HGCM82633A004352" || !vin.Valid(tok.Value) {
		t.Fatalf("unexpected token %+v", tok)
	}
	if tok.Repaired || tok.Substituted {
		t.Fatalf("marker stripping must not flag the token: %+v", tok)
	}
}

func TestMarkerIsStrippedOnEveryPath(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		opts vin.Options
	}{
		{"plain with space", "VIN 1HGCM82633A004352", vin.Options{}},
		{"plain with colon", "vin: 1HGCM82633A004352", vin.Options{}},
		{"barcode payload", "VIN 1HGCM82633A004352", vin.Options{TrimPadding: true}},
		{"barcode glued", "VIN1HGCM82633A004352", vin.Options{TrimPadding: true}},
		{"label glued", "VIN1HGCM82633A004352", vin.Options{LabelText: true}},
		{"label hash", "VIN#1HGCM82633A004352", vin.Options{LabelText: true}},
		{"label dash", "Chassis VIN-1HGCM82633A004352", vin.Options{LabelText: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := collectTokens(tc.raw, tc.opts)
			if len(tokens) != 1 || tokens[0].Value != "1HGCM82633A004352" {
				t.Fatalf("expected only the real VIN, got %+v", tokens)
			}
		})
	}
}

func TestMarkerInsideWordIsNotALabel(t *testing.T) {
	raw := "DRIVING JH4KA7561PC008269\nVIN 1HGCM82633A004352"
	tokens := collectTokens(raw, vin.Options{LabelText: true})
	if len(tokens) != 1 || tokens[0].Value != "1HGCM82633A004352" {
		t.Fatalf("a word containing VIN must not mark its line, got %+v", tokens)
	}
}

func TestExtractLabelTextPrefersMarkedLines(t *testing.T) {
	raw := "JH4KA7561PC008269\nVehicle VIN 1HGCM82633A004352\nMADE IN USA"
	tokens := collectTokens(raw, vin.Options{LabelText: true})
	if len(tokens) != 1 || tokens[0].Value != "1HGCM82633A004352" {
		t.Fatalf("expected only the marked line, got %+v", tokens)
	}

	unmarked := collectTokens("JH4KA7561PC008269\n1HGCM82633A004352", vin.Options{LabelText: true})
	if len(unmarked) != 2 {
		t.Fatalf("expected fallback to all lines, got %+v", unmarked)
	}
}

func TestExtractTrimPaddingFlagsRepair(t *testing.T) {
	tokens := collectTokens("I1HGCM82633A004352", vin.Options{TrimPadding: true})
	if len(tokens) != 1 {
		t.Fatalf("expected one token after trimming, got %+v", tokens)
	}
	if tokens[0].Value != "1HGCM82633A004352" || !tokens[0].Repaired || tokens[0].Substituted {
		t.Fatalf("unexpected token %+v", tokens[0])
	}
}

func TestExtractFlagsSubstitutionPerWindow(t *testing.T) {
	tokens := collectTokens("O1HGCM82633A004352", vin.Options{})
	if len(tokens) != 2 {
		t.Fatalf("expected two windows, got %+v", tokens)
	}
	if !tokens[0].Substituted {
		t.Fatal("first window contains the mapped O")
	}
	if tokens[1].Substituted {
		t.Fatal("second window has no mapped characters")
	}
	if !tokens[1].Repaired {
		t.Fatal("windows cut from an 18-character run are repaired")
	}
}
