package ethereum

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "whole ether", amount: "1", decimals: 18, want: "1000000000000000000"},
		{name: "fractional ether", amount: "1.5", decimals: 18, want: "1500000000000000000"},
		{name: "gwei", amount: "2.25", decimals: 9, want: "2250000000"},
		{name: "leading dot", amount: ".5", decimals: 18, want: "500000000000000000"},
		{name: "negative", amount: "-0.1", decimals: 18, want: "-100000000000000000"},
		{name: "zero decimals", amount: "42", decimals: 0, want: "42"},
		{name: "too precise", amount: "1.0000000000000000001", decimals: 18, wantErr: true},
		{name: "empty", amount: "", decimals: 18, wantErr: true},
		{name: "garbage", amount: "abc", decimals: 18, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseUnits(tc.amount, tc.decimals)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.amount)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.amount, err)
			}
			if got.String() != tc.want {
				t.Fatalf("parse %q = %s, want %s", tc.amount, got.String(), tc.want)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount   string
		decimals int
		want     string
	}{
		{"1000000000000000000", 18, "1"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0"},
		{"-2500000000", 9, "-2.5"},
		{"42", 0, "42"},
	}
	for _, tc := range cases {
		n, ok := new(big.Int).SetString(tc.amount, 10)
		if !ok {
			t.Fatalf("bad fixture %q", tc.amount)
		}
		if got := FormatUnits(n, tc.decimals); got != tc.want {
			t.Fatalf("format %s/%d = %q, want %q", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()

	for _, amount := range []string{"1", "0.5", "123.456789", "0.000000000000000001"} {
		wei, err := ParseUnits(amount, 18)
		if err != nil {
			t.Fatalf("parse %q: %v", amount, err)
		}
		if got := FormatUnits(wei, 18); got != amount {
			t.Fatalf("round trip %q -> %q", amount, got)
		}
	}
}

func TestConvertUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount  string
		from    string
		to      string
		want    string
		wantErr bool
	}{
		{amount: "1", from: "eth", to: "gwei", want: "1000000000"},
		{amount: "1", from: "ether", to: "wei", want: "1000000000000000000"},
		{amount: "1500000000", from: "wei", to: "gwei", want: "1.5"},
		{amount: "0.5", from: "gwei", to: "wei", want: "500000000"},
		{amount: "1", from: "wei", to: "eth", want: "0.000000000000000001"},
		{amount: "1", from: "ETH", to: "Gwei", want: "1000000000"},
		{amount: "0.5", from: "wei", to: "gwei", wantErr: true},
		{amount: "1", from: "parsec", to: "wei", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ConvertUnits(tc.amount, tc.from, tc.to)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error converting %s %s -> %s", tc.amount, tc.from, tc.to)
			}
			continue
		}
		if err != nil {
			t.Fatalf("convert %s %s -> %s: %v", tc.amount, tc.from, tc.to, err)
		}
		if got != tc.want {
			t.Fatalf("convert %s %s -> %s = %q, want %q", tc.amount, tc.from, tc.to, got, tc.want)
		}
	}
}
