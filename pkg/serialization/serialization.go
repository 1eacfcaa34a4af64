package serialization

import "io"

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// Decoder is the interface for deserialization.
type Decoder interface {
	Decode(v any) error
}

// Encoder is the interface for serialization.
type Encoder interface {
	Encode(v any) error
}

// countingWriter 只計算寫入的位元組數，不保留資料
type countingWriter struct {
	n int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

// SizeOf returns the number of bytes v occupies once encoded by the encoder
// built from newEncoder. Values that cannot be encoded report 0.
func SizeOf(newEncoder func(io.Writer) Encoder, v any) int {
	if newEncoder == nil {
		return 0
	}
	w := &countingWriter{}
	if err := newEncoder(w).Encode(v); err != nil {
		return 0
	}
	return w.n
}
