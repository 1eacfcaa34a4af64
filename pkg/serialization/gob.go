package serialization

import (
	"encoding/gob"
	"io"
)

// Gob wraps gob.Decoder and gob.Encoder. Gob sizes are closer to the
// in-memory footprint of Go structs than JSON sizes.
type Gob struct {
	dec *gob.Decoder
	enc *gob.Encoder
}

func (g *Gob) Decode(v any) error {
	return g.dec.Decode(v)
}

func (g *Gob) Encode(v any) error {
	return g.enc.Encode(v)
}

// GobDecoder returns a Decoder reading gob data from r.
func GobDecoder(r io.Reader) Decoder {
	return &Gob{dec: gob.NewDecoder(r)}
}

// GobEncoder returns an Encoder writing gob data to w.
func GobEncoder(w io.Writer) Encoder {
	return &Gob{enc: gob.NewEncoder(w)}
}
