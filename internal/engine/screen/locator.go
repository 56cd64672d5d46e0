package screen

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"github.com/patrickmn/go-cache"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// CaptureFunc grabs the screen. origin is the global coordinate of the
// image's top-left pixel.
type CaptureFunc func() (img image.Image, origin image.Point, err error)

// Locator finds templates on one display and reports global screen
// coordinates of the match center
type Locator struct {
	matcher   Matcher
	capture   CaptureFunc
	load      func(path string) (image.Image, error)
	templates *cache.Cache
}

// LocatorOption customizes a Locator
type LocatorOption func(*Locator)

// WithCapture replaces the display capture
func WithCapture(fn CaptureFunc) LocatorOption {
	return func(l *Locator) { l.capture = fn }
}

// WithTolerance sets the per-pixel RGB tolerance
func WithTolerance(tolerance float64) LocatorOption {
	return func(l *Locator) { l.matcher.Tolerance = tolerance }
}

// NewLocator returns a locator capturing the given display
func NewLocator(display int, opts ...LocatorOption) *Locator {
	l := &Locator{
		matcher:   Matcher{Tolerance: constants.DefaultTolerance},
		capture:   DisplayCapture(display),
		load:      LoadImage,
		templates: cache.New(constants.TemplateCacheTTL, 2*constants.TemplateCacheTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DisplayCapture captures a whole display with kbinani/screenshot
func DisplayCapture(display int) CaptureFunc {
	return func() (image.Image, image.Point, error) {
		// kbinani/screenshot handles multi-monitor bounds correctly
		bounds := screenshot.GetDisplayBounds(display)

		img, err := screenshot.CaptureRect(bounds)
		if err != nil {
			return nil, image.Point{}, fmt.Errorf("failed to capture screen %d: %w", display, err)
		}
		return img, bounds.Min, nil
	}
}

// Displays returns the number of active displays
func Displays() int {
	return screenshot.NumActiveDisplays()
}

// Locate captures the display and looks for template. A miss is not an error.
func (l *Locator) Locate(template string, confidence float64) (image.Point, bool, error) {
	tpl, err := l.template(template)
	if err != nil {
		return image.Point{}, false, err
	}

	screenImg, origin, err := l.capture()
	if err != nil {
		return image.Point{}, false, err
	}

	topLeft, _, ok := l.matcher.Find(screenImg, tpl, confidence)
	if !ok {
		return image.Point{}, false, nil
	}

	b := tpl.Bounds()
	center := topLeft.Sub(screenImg.Bounds().Min).Add(image.Pt(b.Dx()/2, b.Dy()/2))
	return center.Add(origin), true, nil
}

// Forget drops a cached template so the next Locate reloads it from disk
func (l *Locator) Forget(template string) {
	l.templates.Delete(template)
}

func (l *Locator) template(path string) (image.Image, error) {
	if img, ok := l.templates.Get(path); ok {
		return img.(image.Image), nil
	}

	img, err := l.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	l.templates.Set(path, img, cache.DefaultExpiration)
	return img, nil
}
