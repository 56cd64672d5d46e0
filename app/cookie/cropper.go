package cookie

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// CropperWidget displays an image and lets the user drag out a rectangle on it
type CropperWidget struct {
	widget.BaseWidget

	originalImg image.Image
	startPos    fyne.Position
	currentPos  fyne.Position
	isDragging  bool

	raster    *canvas.Image
	selection *canvas.Rectangle

	OnSelected func(rect image.Rectangle) // Pixel rectangle within the image
}

func NewCropperWidget(img image.Image, onSelected func(image.Rectangle)) *CropperWidget {
	c := &CropperWidget{
		originalImg: img,
		OnSelected:  onSelected,
	}
	c.ExtendBaseWidget(c)

	c.raster = canvas.NewImageFromImage(img)
	c.raster.ScaleMode = canvas.ImageScalePixels // No smoothing, templates are matched per pixel
	c.raster.FillMode = canvas.ImageFillContain

	c.selection = canvas.NewRectangle(color.RGBA{R: 255, G: 0, B: 0, A: 60})
	c.selection.StrokeColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	c.selection.StrokeWidth = 2
	c.selection.Hide()

	return c
}

func (c *CropperWidget) CreateRenderer() fyne.WidgetRenderer {
	return &cropperRenderer{
		cropper: c,
		objects: []fyne.CanvasObject{c.raster, c.selection},
	}
}

func (c *CropperWidget) Dragged(e *fyne.DragEvent) {
	if !c.isDragging {
		c.isDragging = true
		c.startPos = e.Position.Subtract(e.Dragged)
		c.selection.Show()
	}
	c.currentPos = e.Position
	c.Refresh()
}

func (c *CropperWidget) DragEnd() {
	c.isDragging = false
	c.Refresh()

	if c.OnSelected == nil {
		return
	}
	b := c.originalImg.Bounds()
	r := pixelRect(c.Size(), image.Pt(b.Dx(), b.Dy()), c.startPos, c.currentPos)
	if r.Empty() {
		return
	}
	c.OnSelected(r.Add(b.Min))
}

func (c *CropperWidget) Tapped(e *fyne.PointEvent) {
	c.startPos = e.Position
	c.currentPos = e.Position
	c.selection.Hide()
	c.Refresh()
}

func (c *CropperWidget) Cursor() desktop.Cursor {
	return desktop.CrosshairCursor
}

// selectionBox is the dragged rectangle in widget coordinates
func (c *CropperWidget) selectionBox() (fyne.Position, fyne.Size) {
	minX, maxX := ordered(c.startPos.X, c.currentPos.X)
	minY, maxY := ordered(c.startPos.Y, c.currentPos.Y)
	return fyne.NewPos(minX, minY), fyne.NewSize(maxX-minX, maxY-minY)
}

// imageArea is where an image of imgSize pixels is drawn inside view with ImageFillContain
func imageArea(view fyne.Size, imgSize image.Point) (fyne.Position, fyne.Size) {
	if view.Width == 0 || view.Height == 0 || imgSize.X == 0 || imgSize.Y == 0 {
		return fyne.Position{}, fyne.Size{}
	}

	aspect := float32(imgSize.X) / float32(imgSize.Y)
	if view.Width/view.Height > aspect {
		// View is wider than image: Fit Height
		w := view.Height * aspect
		return fyne.NewPos((view.Width-w)/2, 0), fyne.NewSize(w, view.Height)
	}
	// View is taller than image: Fit Width
	h := view.Width / aspect
	return fyne.NewPos(0, (view.Height-h)/2), fyne.NewSize(view.Width, h)
}

// pixelRect maps a selection between a and b in widget coordinates to image pixels
func pixelRect(view fyne.Size, imgSize image.Point, a, b fyne.Position) image.Rectangle {
	origin, drawn := imageArea(view, imgSize)
	if drawn.Width == 0 || drawn.Height == 0 {
		return image.Rectangle{}
	}

	minX, maxX := ordered(a.X, b.X)
	minY, maxY := ordered(a.Y, b.Y)

	// Intersect with the drawn image
	left := max(origin.X, minX)
	top := max(origin.Y, minY)
	right := min(origin.X+drawn.Width, maxX)
	bottom := min(origin.Y+drawn.Height, maxY)
	if right <= left || bottom <= top {
		return image.Rectangle{}
	}

	scaleX := float32(imgSize.X) / drawn.Width
	scaleY := float32(imgSize.Y) / drawn.Height

	r := image.Rect(
		int((left-origin.X)*scaleX),
		int((top-origin.Y)*scaleY),
		int((right-origin.X)*scaleX),
		int((bottom-origin.Y)*scaleY),
	)
	// Float math can overshoot by a pixel
	return r.Intersect(image.Rect(0, 0, imgSize.X, imgSize.Y))
}

func ordered(a, b float32) (float32, float32) {
	if a < b {
		return a, b
	}
	return b, a
}

type cropperRenderer struct {
	cropper *CropperWidget
	objects []fyne.CanvasObject
}

func (r *cropperRenderer) Layout(s fyne.Size) {
	r.objects[0].Resize(s)
	r.objects[0].Move(fyne.NewPos(0, 0))
	r.layoutSelection()
}

func (r *cropperRenderer) layoutSelection() {
	pos, size := r.cropper.selectionBox()
	r.objects[1].Move(pos)
	r.objects[1].Resize(size)
}

func (r *cropperRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *cropperRenderer) Refresh() {
	r.layoutSelection()
	canvas.Refresh(r.cropper)
}

func (r *cropperRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *cropperRenderer) Destroy() {}
