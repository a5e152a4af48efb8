package record

import (
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromAnyKinds(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	oid := primitive.NewObjectID()
	cases := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"int", 42, KindNumber},
		{"int64", int64(7), KindNumber},
		{"float", 1.5, KindNumber},
		{"string", "x", KindString},
		{"bytes", []byte("raw"), KindString},
		{"time", ts, KindString},
		{"objectid", oid, KindString},
		{"bson.D", bson.D{{Key: "a", Value: 1}}, KindMap},
		{"bson.A", bson.A{1, "b"}, KindArray},
		{"map", map[string]any{"k": "v"}, KindMap},
		{"slice", []any{nil, false}, KindArray},
		{"primitive.Null", primitive.Null{}, KindNull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromAny(tc.in).Kind(); got != tc.kind {
				t.Fatalf("FromAny(%v).Kind() = %s, want %s", tc.in, got, tc.kind)
			}
		})
	}

	if s, _ := FromAny(oid).Str(); s != oid.Hex() {
		t.Fatalf("objectid rendered as %q, want %q", s, oid.Hex())
	}
	if s, _ := FromAny(ts).Str(); s != "2026-01-02T03:04:05Z" {
		t.Fatalf("time rendered as %q", s)
	}
}

func TestTextFormatsNumbers(t *testing.T) {
	cases := map[float64]string{
		3:       "3",
		-12:     "-12",
		2.5:     "2.5",
		1e6:     "1000000",
		0.00001: "0.00001",
	}
	for in, want := range cases {
		if got := Number(in).Text(); got != want {
			t.Errorf("Number(%v).Text() = %q, want %q", in, got, want)
		}
	}
	if got := Null().Text(); got != "" {
		t.Errorf("Null().Text() = %q, want empty", got)
	}
	if got := Array([]Value{Number(1), String("a")}).Text(); got != `[1,"a"]` {
		t.Errorf("array text = %q", got)
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	in := Record{
		"title":  String("hello"),
		"count":  Number(3),
		"draft":  Bool(false),
		"parent": Null(),
		"tags":   Array([]Value{String("a"), String("b")}),
		"meta":   Map(Record{"lang": String("en")}),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !in.Equal(out) {
		t.Fatalf("round trip mismatch:\n in=%v\nout=%v", in, out)
	}
}

func TestRecordEqual(t *testing.T) {
	a := Record{"x": Number(1)}
	if a.Equal(Record{"x": String("1")}) {
		t.Fatal("number and string must not compare equal")
	}
	if a.Equal(Record{"x": Number(1), "y": Null()}) {
		t.Fatal("records with different key sets must not compare equal")
	}
	if !a.Equal(a.Clone()) {
		t.Fatal("clone must compare equal")
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Record{"b": Null(), "a": Null(), "c": Null()}.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("Keys() = %v", keys)
	}
}
