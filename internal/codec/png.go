package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"math/rand/v2"
)

// PaddingChunkSize is the text payload carried by each padding chunk.
const PaddingChunkSize = 1024

const paddingAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// PNG encodes with image/png. PaddingKB appends that many 1KB tEXt chunks
// before IEND.
type PNG struct {
	Compression png.CompressionLevel
}

func (PNG) Name() string   { return "png" }
func (PNG) Lossless() bool { return true }

func (c PNG) Encode(w io.Writer, img image.Image, p Params) error {
	if p.PaddingKB < 0 {
		return unsupported(c, p, "negative padding")
	}

	enc := png.Encoder{CompressionLevel: c.Compression}
	if p.PaddingKB == 0 {
		return enc.Encode(w, img)
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return err
	}
	padded, err := injectBeforeIEND(buf.Bytes(), paddingChunks(p.PaddingKB))
	if err != nil {
		return err
	}
	_, err = w.Write(padded)
	return err
}

// paddingChunks builds kb tEXt chunks keyed padding_0..padding_{kb-1}. The
// text is pseudo-random but seeded by chunk index so repeated encodes of the
// same image produce identical bytes.
func paddingChunks(kb int) [][]byte {
	chunks := make([][]byte, 0, kb)
	for i := 0; i < kb; i++ {
		rng := rand.New(rand.NewPCG(uint64(i), 0x73697a65666974))
		key := fmt.Sprintf("padding_%d", i)
		data := make([]byte, 0, len(key)+1+PaddingChunkSize)
		data = append(data, key...)
		data = append(data, 0)
		for j := 0; j < PaddingChunkSize; j++ {
			data = append(data, paddingAlphabet[rng.IntN(len(paddingAlphabet))])
		}
		chunks = append(chunks, buildPNGChunk("tEXt", data))
	}
	return chunks
}

func injectBeforeIEND(data []byte, chunks [][]byte) ([]byte, error) {
	if len(data) < len(pngSignature)+12 || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}
	insertAt := len(data) - 12
	if string(data[insertAt+4:insertAt+8]) != "IEND" {
		return nil, errors.New("PNG stream does not end with IEND")
	}

	extra := 0
	for _, c := range chunks {
		extra += len(c)
	}
	out := make([]byte, 0, len(data)+extra)
	out = append(out, data[:insertAt]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	out = append(out, data[insertAt:]...)
	return out, nil
}

func buildPNGChunk(chunkType string, data []byte) []byte {
	chunk := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(chunk[:4], uint32(len(data)))
	copy(chunk[4:8], chunkType)
	chunk = append(chunk, data...)
	crc := crc32.ChecksumIEEE(chunk[4:])
	return binary.BigEndian.AppendUint32(chunk, crc)
}
