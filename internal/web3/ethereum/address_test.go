package ethereum

import "testing"

// Checksummed fixtures from the EIP-55 reference vectors.
const (
	checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	lowercased  = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
)

func TestIsAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "checksummed", input: checksummed, want: true},
		{name: "lowercase", input: lowercased, want: true},
		{name: "uppercase body", input: "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", want: true},
		{name: "bad checksum", input: "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", want: false},
		{name: "too short", input: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea", want: false},
		{name: "no prefix", input: "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", want: false},
		{name: "ens name", input: "vitalik.eth", want: false},
		{name: "empty", input: "", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAddress(tc.input); got != tc.want {
				t.Fatalf("IsAddress(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestChecksumAddress(t *testing.T) {
	t.Parallel()

	if got := ChecksumAddress(lowercased); got != checksummed {
		t.Fatalf("checksum %q = %q, want %q", lowercased, got, checksummed)
	}
	// Checksumming is idempotent.
	if got := ChecksumAddress(checksummed); got != checksummed {
		t.Fatalf("checksum of checksummed form changed to %q", got)
	}
}

func TestParseAddressRejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Fatal("expected error for invalid address")
	}
	addr, err := ParseAddress(lowercased)
	if err != nil {
		t.Fatalf("parse valid address: %v", err)
	}
	if addr.Hex() != checksummed {
		t.Fatalf("parsed address %s, want %s", addr.Hex(), checksummed)
	}
}
