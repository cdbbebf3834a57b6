package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// Buffer is a decoded raster image: height x width x channels of 8-bit
// samples, row-major with interleaved channels. Channels is 3 (RGB) or
// 4 (RGBA).
type Buffer struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

func NewBuffer(width int, height int, channels int) *Buffer {
	return &Buffer{
		Pix:      make([]uint8, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// PixOffset returns the index of the first sample of the pixel at (x, y).
func (b *Buffer) PixOffset(x int, y int) int {
	return (y*b.Width + x) * b.Channels
}

func (b *Buffer) Clone() *Buffer {
	clone := NewBuffer(b.Width, b.Height, b.Channels)
	copy(clone.Pix, b.Pix)
	return clone
}

// SameShape reports whether two buffers have identical dimensions and
// channel depth.
func (b *Buffer) SameShape(other *Buffer) bool {
	return b.Width == other.Width && b.Height == other.Height && b.Channels == other.Channels
}

// ReadPNG decodes a PNG file into a Buffer. Sources that carry an alpha
// channel decode to 4 channels; opaque sources (truecolor, grayscale,
// palette without transparency) decode to 3.
func ReadPNG(path string) (*Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return FromImage(img), nil
}

// FromImage converts a decoded image to a Buffer.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch src := img.(type) {
	case *image.NRGBA:
		buffer := NewBuffer(width, height, 4)
		for y := 0; y < height; y++ {
			row := src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride:]
			row = row[(bounds.Min.X-src.Rect.Min.X)*4:]
			copy(buffer.Pix[y*width*4:(y+1)*width*4], row[:width*4])
		}
		return buffer
	case *image.NRGBA64:
		buffer := NewBuffer(width, height, 4)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := src.NRGBA64At(bounds.Min.X+x, bounds.Min.Y+y)
				i := buffer.PixOffset(x, y)
				buffer.Pix[i] = uint8(c.R >> 8)
				buffer.Pix[i+1] = uint8(c.G >> 8)
				buffer.Pix[i+2] = uint8(c.B >> 8)
				buffer.Pix[i+3] = uint8(c.A >> 8)
			}
		}
		return buffer
	default:
		buffer := NewBuffer(width, height, 3)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				i := buffer.PixOffset(x, y)
				buffer.Pix[i] = uint8(r >> 8)
				buffer.Pix[i+1] = uint8(g >> 8)
				buffer.Pix[i+2] = uint8(b >> 8)
			}
		}
		return buffer
	}
}

// alphaImage hides Opaque from the png encoder, which otherwise strips
// the alpha channel from fully opaque images. Encoded files must keep
// their alpha plane so the channel count does not depend on content.
type alphaImage struct {
	*image.NRGBA
}

func (alphaImage) Opaque() bool { return false }

// EncodePNG encodes a Buffer as PNG. The encoder mandates an alpha
// channel: 3-channel buffers are rejected, callers expand them first.
func EncodePNG(w io.Writer, b *Buffer) error {
	if b.Channels != 4 {
		return fmt.Errorf("failed to encode image: buffer has %d channels, want 4", b.Channels)
	}

	img := &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}

	return png.Encode(w, alphaImage{img})
}

// WritePNG encodes a Buffer to a PNG file.
func WritePNG(path string, b *Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	defer file.Close()

	if err := EncodePNG(file, b); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	return nil
}

// CenterCrop returns a centered width x height sub-rectangle of the buffer.
// The buffer is returned unchanged when it is not larger than the requested
// size.
func CenterCrop(b *Buffer, width int, height int) *Buffer {
	if width >= b.Width && height >= b.Height {
		return b
	}
	if width > b.Width {
		width = b.Width
	}
	if height > b.Height {
		height = b.Height
	}

	x0 := (b.Width - width) / 2
	y0 := (b.Height - height) / 2

	cropped := NewBuffer(width, height, b.Channels)
	for y := 0; y < height; y++ {
		src := b.PixOffset(x0, y0+y)
		copy(cropped.Pix[y*width*b.Channels:(y+1)*width*b.Channels], b.Pix[src:src+width*b.Channels])
	}
	return cropped
}

// Histogram counts the sample values of one channel into 256 bins.
func Histogram(b *Buffer, channel int) [256]int64 {
	var bins [256]int64
	for i := channel; i < len(b.Pix); i += b.Channels {
		bins[b.Pix[i]]++
	}
	return bins
}
