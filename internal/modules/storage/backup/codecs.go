package backup

import (
	"strings"

	"github.com/mx-space/console/internal/pkg/record"
)

// inflateRatio bounds how far a gzip artifact may expand relative to the
// configured artifact size ceiling.
const inflateRatio = 16

var encoders = map[Format]Encoder{
	FormatSQL:   encodeSQLArtifact,
	FormatBSON:  encodeBSONArtifact,
	FormatExcel: EncodeExcel,
}

// DefaultDecoders returns the stock decoder per format. maxBytes is the
// artifact ceiling used to bound decompression.
func DefaultDecoders(maxBytes int64) map[Format]Decoder {
	limit := maxBytes * inflateRatio
	return map[Format]Decoder{
		FormatSQL:   decodeSQLArtifact(limit),
		FormatBSON:  decodeBSONArtifact(limit),
		FormatExcel: DecodeExcel,
	}
}

// prepareRow splits a decoded row into the target id and the payload to
// insert. All candidate id keys and the store-managed timestamps are removed.
func prepareRow(format Format, row record.Record) (string, record.Record) {
	id := ""
	payload := row.Clone()
	for _, key := range format.idKeys() {
		value, ok := payload[key]
		if !ok {
			continue
		}
		delete(payload, key)
		if id == "" && !value.IsNull() {
			id = strings.TrimSpace(value.Text())
		}
	}
	delete(payload, "createdAt")
	delete(payload, "updatedAt")
	return id, payload
}
