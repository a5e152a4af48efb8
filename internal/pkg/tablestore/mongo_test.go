package tablestore

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoCursorKeepsIDType(t *testing.T) {
	oid := primitive.NewObjectID()
	cases := map[string]interface{}{
		"objectid": oid,
		"string":   "row-0099",
		"int":      int64(42),
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			cursor, err := encodeMongoCursor(id)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := decodeMongoCursor(cursor)
			if err != nil {
				t.Fatalf("decode %q: %v", cursor, err)
			}
			if got != id {
				t.Fatalf("cursor %q decoded to %#v, want %#v", cursor, got, id)
			}
		})
	}
}

func TestMongoCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{"row-0099", `{"other":1}`, `{}`} {
		if _, err := decodeMongoCursor(cursor); err == nil {
			t.Errorf("decodeMongoCursor(%q) should fail", cursor)
		}
	}
}

func TestMongoIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	in := mongoIDFilter(oid.Hex())
	cond, ok := in[0].Value.(bson.D)
	if !ok || cond[0].Key != "$in" {
		t.Fatalf("hex id filter = %v", in)
	}
	if values := cond[0].Value.(bson.A); values[0] != oid.Hex() || values[1] != oid {
		t.Fatalf("hex id filter values = %v", values)
	}

	plain := mongoIDFilter("p1")
	if plain[0].Key != "_id" || plain[0].Value != "p1" {
		t.Fatalf("string id filter = %v", plain)
	}
}
