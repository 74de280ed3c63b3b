// Package pgm reads and writes 8-bit grayscale frames in the portable
// graymap format.
package pgm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"

	"github.com/spakin/netpbm"

	"particletriage/internal/imageproc"
)

// ErrFormat is returned for malformed or unsupported graymap data.
var ErrFormat = errors.New("invalid pgm data")

// MaxPixels bounds the frame size a header may declare.
const MaxPixels = 1 << 26

// Decode reads one binary (P5) or plain (P2) graymap. Only depths up to 255
// are supported. The header is checked before any pixel buffer is allocated.
func Decode(r io.Reader) (*imageproc.Grid, error) {
	// Everything the header scan pulls from r is kept so the codec can
	// replay the stream from the start.
	var consumed bytes.Buffer
	br := bufio.NewReader(io.TeeReader(r, &consumed))

	magic, err := token(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrFormat, err)
	}
	if magic != "P5" && magic != "P2" {
		return nil, fmt.Errorf("%w: unsupported magic %q", ErrFormat, magic)
	}

	var dims [3]int
	for i, name := range []string{"width", "height", "maxval"} {
		tok, err := token(br)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrFormat, name, err)
		}
		v, err := strconv.Atoi(tok)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: bad %s %q", ErrFormat, name, tok)
		}
		dims[i] = v
	}
	width, height, maxVal := dims[0], dims[1], dims[2]
	if maxVal > 255 {
		return nil, fmt.Errorf("%w: maxval %d exceeds 8 bits", ErrFormat, maxVal)
	}
	if width > MaxPixels/height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFormat, width, height, MaxPixels)
	}

	img, err := netpbm.Decode(io.MultiReader(&consumed, r), &netpbm.DecodeOptions{
		Target: netpbm.PGM,
		Exact:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("%w: decoded %dx%d, header says %dx%d", ErrFormat, b.Dx(), b.Dy(), width, height)
	}

	g := imageproc.NewGrid(width, height, maxVal)
	m := uint32(maxVal)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint32(color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y)
			g.Set(x, y, uint8((v*m+0x7fff)/0xffff))
		}
	}
	return g, nil
}

// token returns the next whitespace-delimited header token, skipping
// comments. The single whitespace byte ending the token is consumed.
func token(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			if err == io.EOF {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch {
		case b == '#' && len(buf) == 0:
			if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
				return "", err
			}
		case isSpace(b):
			if len(buf) > 0 {
				return string(buf), nil
			}
		default:
			buf = append(buf, b)
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// Encode writes g as a binary (P5) graymap.
func Encode(w io.Writer, g *imageproc.Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	maxVal := g.MaxVal
	if maxVal <= 0 || maxVal > 255 {
		maxVal = 255
	}

	// Samples are widened so the codec scales them back to exactly v.
	m := uint32(maxVal)
	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := min(uint32(g.At(x, y)), m)
			img.SetGray16(x, y, color.Gray16{Y: uint16((v*0xffff + m - 1) / m)})
		}
	}
	return netpbm.Encode(w, img, &netpbm.EncodeOptions{
		Format:   netpbm.PGM,
		MaxValue: uint16(maxVal),
	})
}
