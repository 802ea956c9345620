package codec

import (
	"image"
	"image/jpeg"
	"io"

	"github.com/gen2brain/jpegli"
)

// JPEG is the standard library baseline encoder.
type JPEG struct{}

func (JPEG) Name() string   { return "jpeg" }
func (JPEG) Lossless() bool { return false }

func (c JPEG) Encode(w io.Writer, img image.Image, p Params) error {
	if err := checkLossy(c, p); err != nil {
		return err
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: p.Quality})
}

// Jpegli encodes through the jpegli encoder. Its quality scale is not the
// libjpeg one, so sizes differ from JPEG at equal quality.
type Jpegli struct{}

func (Jpegli) Name() string   { return "jpegli" }
func (Jpegli) Lossless() bool { return false }

func (c Jpegli) Encode(w io.Writer, img image.Image, p Params) error {
	if err := checkLossy(c, p); err != nil {
		return err
	}
	return jpegli.Encode(w, img, &jpegli.EncodingOptions{
		Quality:           p.Quality,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
}

func checkLossy(c Codec, p Params) error {
	if p.Quality < 1 || p.Quality > 100 {
		return unsupported(c, p, "quality %d outside 1..100", p.Quality)
	}
	if p.PaddingKB != 0 {
		return unsupported(c, p, "%s has no text chunk padding", c.Name())
	}
	return nil
}
