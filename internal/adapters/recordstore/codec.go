package recordstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeRecord fills out from rec using out's json tags.
func decodeRecord(rec Record, out any) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// encodeRecord turns v into a Record using its json tags.
func encodeRecord(v any) (Record, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func decodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := decodeRecord(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
