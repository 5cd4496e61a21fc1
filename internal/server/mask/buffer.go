// Package mask turns a rasterized terrain encoding into chunk grids.
//
// Channel layout per pixel: 0 coverage, 1 material code, 2 biome code.
package mask

import (
	"fmt"
	"image"
	"image/color"
)

// Channel indices.
const (
	ChannelCoverage = 0
	ChannelMaterial = 1
	ChannelBiome    = 2
)

// Buffer is a readback pixel buffer with its origin at the bottom-left.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(w, h, channels int) *Buffer {
	return &Buffer{Width: w, Height: h, Channels: channels, Pix: make([]uint8, w*h*channels)}
}

// At returns channel ch of pixel (x, y).
func (b *Buffer) At(x, y, ch int) (uint8, error) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height || ch < 0 || ch >= b.Channels {
		return 0, fmt.Errorf("pixel (%d,%d) channel %d outside %dx%dx%d", x, y, ch, b.Width, b.Height, b.Channels)
	}
	i := (y*b.Width+x)*b.Channels + ch
	if i >= len(b.Pix) {
		return 0, fmt.Errorf("pixel (%d,%d) past end of %d-byte buffer", x, y, len(b.Pix))
	}
	return b.Pix[i], nil
}

// Set writes channel ch of pixel (x, y). Out-of-range writes are ignored.
func (b *Buffer) Set(x, y, ch int, v uint8) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height || ch < 0 || ch >= b.Channels {
		return
	}
	b.Pix[(y*b.Width+x)*b.Channels+ch] = v
}

// FromImage reads an image (top-left origin) into a 4-channel buffer with a
// bottom-left origin.
func FromImage(img image.Image) *Buffer {
	r := img.Bounds()
	b := NewBuffer(r.Dx(), r.Dy(), 4)

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Height; y++ {
			src := n.Pix[y*n.Stride : y*n.Stride+b.Width*4]
			dst := (b.Height - 1 - y) * b.Width * 4
			copy(b.Pix[dst:dst+b.Width*4], src)
		}
		return b
	}

	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			i := ((b.Height-1-y)*b.Width + x) * 4
			b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return b
}

// Image converts the buffer back to an NRGBA image with a top-left origin.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			var px [4]uint8
			px[3] = 255
			for ch := 0; ch < b.Channels && ch < 4; ch++ {
				px[ch] = b.Pix[(y*b.Width+x)*b.Channels+ch]
			}
			i := img.PixOffset(x, b.Height-1-y)
			copy(img.Pix[i:i+4], px[:])
		}
	}
	return img
}
