package codec

import (
	"errors"
	"image"
)

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// Measure encodes img with c and returns the encoded byte count. Nothing is
// retained: the encoder output is counted and dropped. Any failure is
// returned as a *CodecError.
func Measure(c Codec, img image.Image, p Params) (int64, error) {
	if img == nil {
		return 0, &CodecError{Codec: c.Name(), Params: p, Err: errors.New("nil image")}
	}

	var cw countingWriter
	if err := c.Encode(&cw, img, p); err != nil {
		var ce *CodecError
		if errors.As(err, &ce) {
			return 0, err
		}
		return 0, &CodecError{Codec: c.Name(), Params: p, Err: err}
	}
	return cw.n, nil
}
