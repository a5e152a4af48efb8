package backup

import (
	"fmt"
	"time"

	"github.com/mx-space/console/internal/pkg/record"
	"go.mongodb.org/mongo-driver/bson"
)

const bsonDataField = "data"

type bsonArtifact struct {
	Collection string           `bson:"collection"`
	ExportedAt time.Time        `bson:"exportedAt"`
	Data       []map[string]any `bson:"data"`
}

// EncodeBSON writes a single document {collection, exportedAt, data: [...]}.
func EncodeBSON(collection string, rows []record.Record) ([]byte, error) {
	doc := bsonArtifact{
		Collection: collection,
		ExportedAt: time.Now().UTC(),
		Data:       make([]map[string]any, 0, len(rows)),
	}
	for _, row := range rows {
		doc.Data = append(doc.Data, row.Any())
	}
	out, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode bson: %w", err)
	}
	return out, nil
}

// DecodeBSON reads the rows under the top-level data field. A document
// without an array there yields no rows.
func DecodeBSON(payload []byte) ([]record.Record, error) {
	var doc bson.M
	if err := bson.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	rows := make([]record.Record, 0)
	items, ok := doc[bsonDataField].(bson.A)
	if !ok {
		return rows, nil
	}
	for _, item := range items {
		value := record.FromAny(item)
		if m, ok := value.Map(); ok {
			rows = append(rows, m)
		}
	}
	return rows, nil
}

func decodeBSONArtifact(limit int64) Decoder {
	return func(data []byte) ([]record.Record, error) {
		payload, err := decompressBytes(data, limit)
		if err != nil {
			return nil, err
		}
		return DecodeBSON(payload)
	}
}

func encodeBSONArtifact(collection string, rows []record.Record) ([]byte, error) {
	payload, err := EncodeBSON(collection, rows)
	if err != nil {
		return nil, err
	}
	return compressBytes(payload)
}
