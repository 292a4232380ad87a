package ipfs

import (
	"strings"
	"testing"
)

// The empty unixfs directory, a stable well-known CID in both versions.
const (
	emptyDirV0 = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"
	emptyDirV1 = "bafybeiczsscdsbs7ffqz55asqdf3smv6klcw3gofszvwlyarci47bgf354"
)

func TestIsCID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  bool
	}{
		{emptyDirV0, true},
		{emptyDirV1, true},
		{"not-a-cid", false},
		{"", false},
		{"ipfs://" + emptyDirV0, false},
	}
	for _, tc := range cases {
		if got := IsCID(tc.input); got != tc.want {
			t.Fatalf("IsCID(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestCIDVersionConversion(t *testing.T) {
	t.Parallel()

	v1, err := ToV1(emptyDirV0)
	if err != nil {
		t.Fatalf("to v1: %v", err)
	}
	if v1 != emptyDirV1 {
		t.Fatalf("v1 conversion = %s, want %s", v1, emptyDirV1)
	}
	// Converting an already-v1 CID is a no-op.
	again, err := ToV1(v1)
	if err != nil || again != v1 {
		t.Fatalf("v1 idempotence broken: %s, %v", again, err)
	}

	v0, err := ToV0(emptyDirV1)
	if err != nil {
		t.Fatalf("to v0: %v", err)
	}
	if v0 != emptyDirV0 {
		t.Fatalf("v0 conversion = %s, want %s", v0, emptyDirV0)
	}

	if _, err := ToV1("bogus"); err == nil {
		t.Fatal("expected error for invalid cid")
	}
}

func TestComputeCID(t *testing.T) {
	t.Parallel()

	first, err := ComputeCID([]byte("hello world"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !IsCID(first) {
		t.Fatalf("computed value is not a cid: %s", first)
	}
	if !strings.HasPrefix(first, "bafkrei") {
		t.Fatalf("expected raw sha2-256 v1 prefix, got %s", first)
	}
	second, err := ComputeCID([]byte("hello world"))
	if err != nil || second != first {
		t.Fatalf("compute is not deterministic: %s vs %s", first, second)
	}
	other, err := ComputeCID([]byte("different"))
	if err != nil || other == first {
		t.Fatal("different content produced the same cid")
	}

	// Raw-leaf CIDs have no v0 form.
	if _, err := ToV0(first); err == nil {
		t.Fatal("expected raw cid to reject v0 conversion")
	}
}
