package serialization

import (
	"encoding/json"
	"io"
)

// JSON wraps json.Decoder and json.Encoder.
type JSON struct {
	dec *json.Decoder
	enc *json.Encoder
}

func (j *JSON) Decode(v any) error {
	return j.dec.Decode(v)
}

func (j *JSON) Encode(v any) error {
	return j.enc.Encode(v)
}

// JSONDecoder returns a Decoder reading JSON from r.
func JSONDecoder(r io.Reader) Decoder {
	return &JSON{dec: json.NewDecoder(r)}
}

// JSONEncoder returns an Encoder writing JSON to w.
func JSONEncoder(w io.Writer) Encoder {
	return &JSON{enc: json.NewEncoder(w)}
}
