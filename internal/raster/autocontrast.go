package raster

// Autocontrast returns a copy of the buffer with each channel independently
// contrast-stretched: the given percentage of pixels is trimmed from both
// ends of the channel's histogram and the surviving value range is rescaled
// linearly to [0, 255]. Channels whose range degenerates after trimming are
// left unchanged.
func Autocontrast(b *Buffer, percent int) *Buffer {
	out := b.Clone()
	total := int64(b.Width * b.Height)

	for channel := 0; channel < b.Channels; channel++ {
		bins := Histogram(b, channel)
		cut := total * int64(percent) / 100

		remaining := cut
		for i := 0; i < 256 && remaining > 0; i++ {
			if bins[i] > remaining {
				bins[i] -= remaining
				remaining = 0
			} else {
				remaining -= bins[i]
				bins[i] = 0
			}
		}
		remaining = cut
		for i := 255; i >= 0 && remaining > 0; i-- {
			if bins[i] > remaining {
				bins[i] -= remaining
				remaining = 0
			} else {
				remaining -= bins[i]
				bins[i] = 0
			}
		}

		lo, hi := -1, -1
		for i := 0; i < 256; i++ {
			if bins[i] > 0 {
				if lo < 0 {
					lo = i
				}
				hi = i
			}
		}
		if lo < 0 || hi <= lo {
			continue
		}

		scale := 255.0 / float64(hi-lo)
		var lut [256]uint8
		for i := range lut {
			v := (float64(i) - float64(lo)) * scale
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			lut[i] = uint8(v + 0.5)
		}

		for i := channel; i < len(out.Pix); i += out.Channels {
			out.Pix[i] = lut[out.Pix[i]]
		}
	}

	return out
}
