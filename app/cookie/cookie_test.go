package cookie

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/engine"
	"github.com/ConserveLee/cookie-idle/internal/logger"
)

type fakeController struct {
	cfg     config.BotConfig
	applied map[config.Mode]config.Input
	err     error
}

func newFakeController() *fakeController {
	return &fakeController{cfg: config.Default().Config, applied: make(map[config.Mode]config.Input)}
}

func (f *fakeController) Toggle(config.Mode) bool { return false }
func (f *fakeController) Status(m config.Mode) engine.ModeStatus { return engine.ModeStatus{Mode: m} }
func (f *fakeController) Config() config.BotConfig { return f.cfg }
func (f *fakeController) ResetSessionCounter(config.Mode) {}
func (f *fakeController) ResetLifetimeCounter(config.Mode) {}
func (f *fakeController) OnUpdate(func()) {}
func (f *fakeController) ApplySettings(m config.Mode, in config.Input) error {
	if f.err != nil {
		return f.err
	}
	f.applied[m] = in
	return nil
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		st   engine.ModeStatus
		want string
	}{
		{"transient off", engine.ModeStatus{Mode: config.Transient, Key: "f8"}, "Status: OFF [F8]"},
		{"transient on", engine.ModeStatus{Mode: config.Transient, Enabled: true, Key: "f8"}, "Status: ON [F8]"},
		{"stationary off hides phase", engine.ModeStatus{Mode: config.Stationary, Phase: engine.PhaseIdle, Key: "f9"}, "Status: OFF [F9]"},
		{"stationary acquiring", engine.ModeStatus{Mode: config.Stationary, Enabled: true, Phase: engine.PhaseAcquiring, Key: "f9"}, "Status: ON [F9] - acquiring"},
		{"stationary acquired", engine.ModeStatus{Mode: config.Stationary, Enabled: true, Phase: engine.PhaseAcquired, Key: "f10"}, "Status: ON [F10] - acquired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusText(tt.st))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Golden Cookie", Title(config.Transient))
	assert.Equal(t, "Big Cookie", Title(config.Stationary))
}

func TestPixelRectScalesSelection(t *testing.T) {
	view := fyne.NewSize(400, 200)
	img := image.Pt(200, 100)

	r := pixelRect(view, img, fyne.NewPos(300, 150), fyne.NewPos(100, 50))
	assert.Equal(t, image.Rect(50, 25, 150, 75), r)
}

func TestPixelRectClipsToLetterbox(t *testing.T) {
	view := fyne.NewSize(400, 400)
	img := image.Pt(200, 100)

	origin, drawn := imageArea(view, img)
	assert.Equal(t, fyne.NewPos(0, 100), origin)
	assert.Equal(t, fyne.NewSize(400, 200), drawn)

	r := pixelRect(view, img, fyne.NewPos(0, 0), fyne.NewPos(200, 200))
	assert.Equal(t, image.Rect(0, 0, 100, 50), r)

	// Entirely inside the top bar
	assert.True(t, pixelRect(view, img, fyne.NewPos(10, 10), fyne.NewPos(50, 90)).Empty())
}

func TestPixelRectEmptyView(t *testing.T) {
	assert.True(t, pixelRect(fyne.Size{}, image.Pt(10, 10), fyne.NewPos(0, 0), fyne.NewPos(5, 5)).Empty())
}

func TestSuggestNameSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "golden_cookie.png", SuggestName(dir, config.Transient))
	assert.Equal(t, "big_cookie.png", SuggestName(dir, config.Stationary))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden_cookie.png"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden_cookie_2.png"), nil, 0o600))
	assert.Equal(t, "golden_cookie_3.png", SuggestName(dir, config.Transient))
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 20, A: 255})
		}
	}
	return img
}

func TestSaveWritesTemplateAndApplies(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")
	ctl := newFakeController()
	var forgotten []string
	tool := NewTemplateTool(ctl, logger.Nop(), dir, 0, func(p string) { forgotten = append(forgotten, p) })

	path, err := tool.Save(config.Stationary, " big ", testImage())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "big.png"), path)
	assert.Equal(t, []string{path}, forgotten)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), decoded.Bounds())

	in, ok := ctl.applied[config.Stationary]
	require.True(t, ok)
	assert.Equal(t, path, in.Template)
	assert.Equal(t, "F9", in.ToggleKey)
	_, touched := ctl.applied[config.Transient]
	assert.False(t, touched)
}

func TestSaveRejectsEmptyName(t *testing.T) {
	tool := NewTemplateTool(newFakeController(), logger.Nop(), t.TempDir(), 0, nil)
	_, err := tool.Save(config.Transient, "  ", testImage())
	assert.Error(t, err)
}

func TestSaveReportsApplyFailure(t *testing.T) {
	ctl := newFakeController()
	ctl.err = errors.New("rejected")
	tool := NewTemplateTool(ctl, logger.Nop(), t.TempDir(), 0, nil)

	path, err := tool.Save(config.Transient, "gold.PNG", testImage())
	require.Error(t, err)
	assert.Equal(t, "gold.PNG", filepath.Base(path))
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}
