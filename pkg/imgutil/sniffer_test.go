package imgutil

import (
	"bytes"
	"testing"
)

func TestDetectHeader(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   Kind
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0}, KindJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, KindPNG},
		{"qoi", []byte("qoif\x00\x00\x00\x01"), KindQOI},
		{"gif", []byte("GIF89a\x01\x00"), KindGIF},
		{"tiff", []byte{0x49, 0x49, 0x2a, 0x00, 8, 0, 0, 0}, KindTIFF},
		{"text", []byte("hello wo"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectHeader(tc.header)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSniffReaderShortInput(t *testing.T) {
	kind, err := SniffReader(bytes.NewReader([]byte{0xff, 0xd8}))
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if kind != KindUnknown {
		t.Fatalf("expected unknown for short input, got %v", kind)
	}
}

func TestKindFromExt(t *testing.T) {
	if KindFromExt("a/b/photo.JPG") != KindJPEG {
		t.Fatal("expected jpeg for .JPG")
	}
	if KindFromExt("x.qoi") != KindQOI {
		t.Fatal("expected qoi")
	}
	if KindFromExt("noext") != KindUnknown {
		t.Fatal("expected unknown")
	}
	if !KindPNG.Encodable() || KindGIF.Encodable() {
		t.Fatal("unexpected Encodable result")
	}
}
