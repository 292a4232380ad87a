package ipfs

import "testing"

func TestParseRef(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		wantCID  string
		wantPath string
		wantIPNS bool
		wantErr  bool
	}{
		{name: "bare cid", input: emptyDirV0, wantCID: emptyDirV0},
		{name: "ipfs uri", input: "ipfs://" + emptyDirV0, wantCID: emptyDirV0},
		{name: "ipfs uri with path", input: "ipfs://" + emptyDirV0 + "/metadata.json", wantCID: emptyDirV0, wantPath: "metadata.json"},
		{name: "double ipfs prefix", input: "ipfs://ipfs/" + emptyDirV0, wantCID: emptyDirV0},
		{name: "gateway url", input: "https://ipfs.io/ipfs/" + emptyDirV1 + "/a/b", wantCID: emptyDirV1, wantPath: "a/b"},
		{name: "ipfs path", input: "/ipfs/" + emptyDirV0, wantCID: emptyDirV0},
		{name: "ipns uri", input: "ipns://example-name", wantCID: "example-name", wantIPNS: true},
		{name: "ipns path", input: "/ipns/example.eth", wantCID: "example.eth", wantIPNS: true},
		{name: "ipns gateway url", input: "https://ipfs.io/ipns/example.eth/metadata.json", wantCID: "example.eth", wantPath: "metadata.json", wantIPNS: true},
		{name: "empty ipns name", input: "ipns://", wantErr: true},
		{name: "gateway without ipfs path", input: "https://example.com/" + emptyDirV0, wantErr: true},
		{name: "garbage", input: "hello", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := ParseRef(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.input, err)
			}
			if ref.CID != tc.wantCID || ref.Path != tc.wantPath || ref.IPNS != tc.wantIPNS {
				t.Fatalf("parse %q = %+v", tc.input, ref)
			}
		})
	}
}

func TestNormalizeURIIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		emptyDirV0,
		"ipfs://" + emptyDirV0,
		"https://ipfs.io/ipfs/" + emptyDirV0 + "/art.png",
		"/ipfs/" + emptyDirV1,
		"ipns://example-name",
		"/ipns/example.eth",
		"https://ipfs.io/ipns/example.eth/metadata.json",
	}
	for _, input := range inputs {
		once, err := NormalizeURI(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		twice, err := NormalizeURI(once)
		if err != nil {
			t.Fatalf("re-normalize %q: %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalize not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}

	for _, input := range []string{"ipns://example.eth", "/ipns/example.eth", "https://ipfs.io/ipns/example.eth"} {
		got, err := NormalizeURI(input)
		if err != nil {
			t.Fatalf("normalize %q: %v", input, err)
		}
		if got != "ipns://example.eth" {
			t.Fatalf("normalize %q = %q, want ipns://example.eth", input, got)
		}
	}
}

func TestGatewayURL(t *testing.T) {
	t.Parallel()

	ref := Ref{CID: emptyDirV0, Path: "art.png"}
	want := "https://ipfs.io/ipfs/" + emptyDirV0 + "/art.png"
	if got := ref.GatewayURL("https://ipfs.io/ipfs/"); got != want {
		t.Fatalf("gateway url = %q, want %q", got, want)
	}
	// Base without the /ipfs/ suffix gets it appended.
	if got := ref.GatewayURL("https://ipfs.io"); got != want {
		t.Fatalf("gateway url = %q, want %q", got, want)
	}

	ipnsRef := Ref{CID: "example.eth", IPNS: true}
	if got, want := ipnsRef.GatewayURL("https://ipfs.io/ipfs/"), "https://ipfs.io/ipns/example.eth"; got != want {
		t.Fatalf("ipns gateway url = %q, want %q", got, want)
	}
}
