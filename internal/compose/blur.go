package compose

import "image"

// boxBlur applies passes horizontal+vertical box blurs of radius r to m in
// place. Three passes approximate a Gaussian with sigma ≈ r. Pixels outside
// the mask count as transparent.
func boxBlur(m *image.Alpha, r, passes int) {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	if r < 1 || w == 0 || h == 0 {
		return
	}
	buf := make([]float32, w*h)
	for i, a := range m.Pix[:w*h] {
		buf[i] = float32(a)
	}
	tmp := make([]float32, max(w, h))

	for p := 0; p < passes; p++ {
		for y := 0; y < h; y++ {
			blurLine(buf[y*w:(y+1)*w], 1, w, r, tmp)
		}
		for x := 0; x < w; x++ {
			blurLine(buf[x:], w, h, r, tmp)
		}
	}

	for i, v := range buf {
		if v > 255 {
			v = 255
		}
		m.Pix[i] = uint8(v + 0.5)
	}
}

// blurLine blurs n samples spaced stride apart starting at line[0] with a
// running sum over a window of 2r+1.
func blurLine(line []float32, stride, n, r int, tmp []float32) {
	for i := 0; i < n; i++ {
		tmp[i] = line[i*stride]
	}
	inv := 1 / float32(2*r+1)
	var sum float32
	for i := 0; i <= r && i < n; i++ {
		sum += tmp[i]
	}
	for i := 0; i < n; i++ {
		line[i*stride] = sum * inv
		if add := i + r + 1; add < n {
			sum += tmp[add]
		}
		if sub := i - r; sub >= 0 {
			sum -= tmp[sub]
		}
	}
}
