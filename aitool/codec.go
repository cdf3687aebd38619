package aitool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// decodeParams decodes a request body into a params struct. Unknown fields
// are tolerated (agents routinely send extras such as $schema tags) but
// trailing data after the first JSON value is rejected.
func decodeParams(raw json.RawMessage, into any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty parameter payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(into); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("trailing data after parameter payload")
	}
	return nil
}

// encodeResult marshals a handler result for the wire. A nil result encodes
// as JSON null.
func encodeResult(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("result encoding: %w", err)
	}
	return data, nil
}
