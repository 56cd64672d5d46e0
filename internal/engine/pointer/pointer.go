// Package pointer drives the system mouse through robotgo.
package pointer

import (
	"image"

	"github.com/go-vgo/robotgo"
)

// Robot implements the engine pointer on top of robotgo. robotgo reports no
// errors for these calls, so every method returns nil. Callers serialize
// multi-step sequences themselves.
type Robot struct{}

func New() *Robot {
	return &Robot{}
}

// Click presses the left button at the current position
func (r *Robot) Click() error {
	robotgo.Click("left")
	return nil
}

// ClickAt moves to p and clicks
func (r *Robot) ClickAt(p image.Point) error {
	robotgo.MoveMouse(p.X, p.Y)
	robotgo.Click("left")
	return nil
}

func (r *Robot) MoveTo(p image.Point) error {
	robotgo.MoveMouse(p.X, p.Y)
	return nil
}

func (r *Robot) Position() (image.Point, error) {
	x, y := robotgo.Location()
	return image.Pt(x, y), nil
}

// DisplayOrigin returns the global coordinate of the top-left corner of display id
func DisplayOrigin(id int) image.Point {
	x, y, _, _ := robotgo.GetDisplayBounds(id)
	return image.Pt(x, y)
}
