package codec

import (
	"bytes"
	"testing"
)

type record struct {
	Sym  string `json:"sym"`
	Name string `json:"nazwa"`
	Note string `json:"note,omitempty"`
}

func TestJSONRoundTrip(t *testing.T) {
	in := record{Sym: "0982954", Name: "Oława"}
	payload, err := JSON{}.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out record
	if err := (JSON{}).Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestCBORRoundTripHonorsJSONTags(t *testing.T) {
	in := record{Sym: "0982954", Name: "Oława"}
	payload, err := CBOR{}.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out record
	if err := (CBOR{}).Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestCBORMarshalIsDeterministic(t *testing.T) {
	in := map[string]string{"woj": "02", "pow": "14", "gmi": "01", "rodz": "1", "nazwa": "Oława"}
	first, err := CBOR{}.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := CBOR{}.Marshal(in)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical payloads, got %x and %x", first, second)
	}
}

func TestCodecNames(t *testing.T) {
	if (JSON{}).Name() != "json" {
		t.Fatalf("expected json codec name, got %q", JSON{}.Name())
	}
	if (CBOR{}).Name() != "cbor" {
		t.Fatalf("expected cbor codec name, got %q", CBOR{}.Name())
	}
}

func TestJSONUnmarshalRejectsGarbage(t *testing.T) {
	var out record
	if err := (JSON{}).Unmarshal([]byte("{"), &out); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
