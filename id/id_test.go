package id

import (
	"encoding/json"
	"testing"
)

func TestNewItemID(t *testing.T) {
	itemID := NewItemID()
	if itemID.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if itemID.Prefix() != PrefixItem {
		t.Fatalf("expected prefix %q, got %q", PrefixItem, itemID.Prefix())
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		s := NewItemID().String()
		if seen[s] {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = true
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := NewHolderID()
	parsed, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip mismatch: %s != %s", parsed, orig)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not a typeid!!"},
		{"bad suffix", "cb_zzzzzzzzzzzzzzzzzzzzzzzzzz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); err == nil {
				t.Fatalf("expected error parsing %q", tc.input)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	itemID := NewItemID()

	if _, err := ParseItemID(itemID.String()); err != nil {
		t.Fatalf("ParseItemID: %v", err)
	}
	if _, err := ParseHolderID(itemID.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestNilID(t *testing.T) {
	if !Nil.IsNil() {
		t.Fatal("Nil should report IsNil")
	}
	if Nil.String() != "" {
		t.Fatalf("Nil.String() should be empty, got %q", Nil.String())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := NewItemID()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Fatalf("JSON round trip mismatch: %s != %s", decoded, orig)
	}
}

func TestScanValue(t *testing.T) {
	orig := NewItemID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.String() != orig.String() {
		t.Fatalf("scan round trip mismatch: %s != %s", scanned, orig)
	}

	var null ID
	if err := null.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !null.IsNil() {
		t.Fatal("scanning nil should produce Nil ID")
	}
}
