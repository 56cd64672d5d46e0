package screen

import (
	"image"
	_ "image/png" // Register PNG decoder for image.Decode
	"os"
)

// Matcher compares templates against screen images pixel by pixel
type Matcher struct {
	Tolerance float64 // Maximum RGB distance for two pixels to count as equal
}

// LoadImage loads an image from the filesystem
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// Find scans screenImg for templateImg and returns the top-left corner of the
// first position where at least confidence of the opaque template pixels match,
// together with the score at that position.
func (m Matcher) Find(screenImg, templateImg image.Image, confidence float64) (image.Point, float64, bool) {
	sBounds := screenImg.Bounds()
	tBounds := templateImg.Bounds()
	tWidth, tHeight := tBounds.Dx(), tBounds.Dy()
	if tWidth == 0 || tHeight == 0 || tWidth > sBounds.Dx() || tHeight > sBounds.Dy() {
		return image.Point{}, 0, false
	}

	// Key pixels for quick rejection: Top-Left, Center, Bottom-Right
	keys := []image.Point{
		{0, 0},
		{tWidth / 2, tHeight / 2},
		{tWidth - 1, tHeight - 1},
	}
	var keyColors [3][4]uint32
	for i, k := range keys {
		r, g, b, a := rgba(templateImg, tBounds.Min.X+k.X, tBounds.Min.Y+k.Y)
		keyColors[i] = [4]uint32{r, g, b, a}
	}

	total := opaquePixels(templateImg)
	if total == 0 {
		return image.Point{}, 0, false
	}
	allowed := int(float64(total)*(1-confidence) + 1e-9)

	for y := sBounds.Min.Y; y <= sBounds.Max.Y-tHeight; y++ {
		for x := sBounds.Min.X; x <= sBounds.Max.X-tWidth; x++ {
			if !m.keysPlausible(screenImg, x, y, keys, keyColors, confidence) {
				continue
			}
			if score, ok := m.score(screenImg, templateImg, x, y, total, allowed); ok {
				return image.Point{X: x, Y: y}, score, true
			}
		}
	}
	return image.Point{}, 0, false
}

// keysPlausible rejects a position early. An exact match needs every opaque key
// pixel, a fuzzy one only needs as many as the confidence allows.
func (m Matcher) keysPlausible(screenImg image.Image, x, y int, keys []image.Point, keyColors [3][4]uint32, confidence float64) bool {
	opaque, misses := 0, 0
	for i, k := range keys {
		c := keyColors[i]
		if c[3] == 0 {
			continue
		}
		opaque++
		sr, sg, sb, _ := rgba(screenImg, x+k.X, y+k.Y)
		if !colorSimilar(sr, sg, sb, c[0], c[1], c[2], m.Tolerance) {
			misses++
		}
	}
	if opaque == 0 {
		return true
	}
	if confidence >= 1 {
		return misses == 0
	}
	return misses < opaque
}

func opaquePixels(templateImg image.Image) int {
	tBounds := templateImg.Bounds()
	total := 0
	for y := tBounds.Min.Y; y < tBounds.Max.Y; y++ {
		for x := tBounds.Min.X; x < tBounds.Max.X; x++ {
			if _, _, _, a := rgba(templateImg, x, y); a > 0 {
				total++
			}
		}
	}
	return total
}

// score returns the fraction of the total opaque template pixels matching at
// (sx, sy). It gives up once more than allowed pixels have failed.
func (m Matcher) score(screenImg, templateImg image.Image, sx, sy, total, allowed int) (float64, bool) {
	tBounds := templateImg.Bounds()

	failed := 0
	for ty := 0; ty < tBounds.Dy(); ty++ {
		for tx := 0; tx < tBounds.Dx(); tx++ {
			tr, tg, tb, ta := rgba(templateImg, tBounds.Min.X+tx, tBounds.Min.Y+ty)
			// Transparent template pixels act as wildcards
			if ta == 0 {
				continue
			}

			sr, sg, sb, _ := rgba(screenImg, sx+tx, sy+ty)
			if !colorSimilar(sr, sg, sb, tr, tg, tb, m.Tolerance) {
				failed++
				if failed > allowed {
					return 0, false
				}
			}
		}
	}

	return float64(total-failed) / float64(total), true
}

// rgba returns the color components of (x, y) normalized to 0-255
func rgba(img image.Image, x, y int) (r, g, b, a uint32) {
	if p, ok := img.(*image.RGBA); ok {
		i := p.PixOffset(x, y)
		s := p.Pix[i : i+4 : i+4]
		return uint32(s[0]), uint32(s[1]), uint32(s[2]), uint32(s[3])
	}
	r, g, b, a = img.At(x, y).RGBA()
	return r >> 8, g >> 8, b >> 8, a >> 8
}

func colorSimilar(r1, g1, b1, r2, g2, b2 uint32, tolerance float64) bool {
	// Euclidean distance in RGB space, compared squared
	dr := int(r1) - int(r2)
	dg := int(g1) - int(g2)
	db := int(b1) - int(b2)
	return float64(dr*dr+dg*dg+db*db) <= tolerance*tolerance
}
