package cookie

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/kbinani/screenshot"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/logger"
)

// TemplateTool captures a display, lets the user crop a target out of it and
// installs the crop as the template of a mode
type TemplateTool struct {
	ctl     Controller
	log     *logger.AppLogger
	dir     string
	display int
	forget  func(path string) // Drops a stale cached template, may be nil
}

func NewTemplateTool(ctl Controller, log *logger.AppLogger, dir string, display int, forget func(string)) *TemplateTool {
	return &TemplateTool{ctl: ctl, log: log, dir: dir, display: display, forget: forget}
}

// Save writes img as dir/name and makes it the template of m
func (t *TemplateTool) Save(m config.Mode, name string, img image.Image) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("file name is empty")
	}
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}
	path := filepath.Join(t.dir, filepath.Base(name))

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if t.forget != nil {
		t.forget(path)
	}

	in := config.InputFrom(t.ctl.Config().Mode(m))
	in.Template = path
	if err := t.ctl.ApplySettings(m, in); err != nil {
		return path, err
	}
	t.log.Info("Saved %s template %s (%dx%d)", Title(m), path, img.Bounds().Dx(), img.Bounds().Dy())
	return path, nil
}

// View is the Templates tab
func (t *TemplateTool) View(win fyne.Window) fyne.CanvasObject {
	var displayOptions []string
	for i := 0; i < screenshot.NumActiveDisplays(); i++ {
		bounds := screenshot.GetDisplayBounds(i)
		displayOptions = append(displayOptions, fmt.Sprintf("Display %d (%dx%d)", i, bounds.Dx(), bounds.Dy()))
	}
	if len(displayOptions) == 0 {
		displayOptions = []string{"Display 0 (Default)"}
	}

	selected := t.display
	displaySelect := widget.NewSelect(displayOptions, func(s string) {
		var id int
		if _, err := fmt.Sscanf(s, "Display %d", &id); err == nil {
			selected = id
		}
	})
	if t.display < len(displayOptions) {
		displaySelect.SetSelected(displayOptions[t.display])
	} else {
		displaySelect.SetSelected(displayOptions[0])
	}

	infoLabel := widget.NewLabel("1. Open the game on the selected display\n2. Capture & Crop\n3. Drag a box around the cookie\n4. Save it as the template of a mode")
	infoLabel.Alignment = fyne.TextAlignCenter

	cropBtn := widget.NewButton("Capture & Crop", func() {
		bounds := screenshot.GetDisplayBounds(selected)
		img, err := screenshot.CaptureRect(bounds)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		t.showCropper(img)
	})
	cropBtn.Importance = widget.HighImportance

	openDirBtn := widget.NewButton("Open Templates Folder", func() {
		if err := os.MkdirAll(t.dir, 0o755); err == nil {
			openDir(t.dir)
		}
	})

	return container.NewVBox(
		widget.NewLabel("Display:"),
		displaySelect,
		widget.NewSeparator(),
		infoLabel,
		cropBtn,
		widget.NewSeparator(),
		openDirBtn,
	)
}

func (t *TemplateTool) showCropper(fullImg image.Image) {
	w := fyne.CurrentApp().NewWindow("Crop Template")
	w.Resize(fyne.NewSize(800, 600))

	lbl := widget.NewLabel("Drag a box around the target...")
	lbl.Alignment = fyne.TextAlignCenter

	saveBtn := widget.NewButton("Save Selection", nil)
	saveBtn.Disable()

	var currentSelection image.Rectangle
	cropper := NewCropperWidget(fullImg, func(rect image.Rectangle) {
		currentSelection = rect
		lbl.SetText(fmt.Sprintf("Selected %dx%d at (%d, %d)", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y))
		saveBtn.Enable()
	})

	saveBtn.OnTapped = func() {
		if currentSelection.Empty() {
			return
		}
		sub, ok := fullImg.(interface {
			SubImage(r image.Rectangle) image.Image
		})
		if !ok {
			dialog.ShowError(fmt.Errorf("image type does not support cropping"), w)
			return
		}
		t.showSaveForm(w, sub.SubImage(currentSelection))
	}

	w.SetContent(container.NewBorder(nil, container.NewVBox(lbl, saveBtn), nil, nil, cropper))
	w.Show()
}

func (t *TemplateTool) showSaveForm(win fyne.Window, img image.Image) {
	preview := canvas.NewImageFromImage(img)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(100, 100))

	var titles []string
	byTitle := make(map[string]config.Mode)
	for _, m := range config.Modes() {
		titles = append(titles, Title(m))
		byTitle[Title(m)] = m
	}

	nameEntry := widget.NewEntry()
	modeSelect := widget.NewSelect(titles, func(s string) {
		nameEntry.SetText(SuggestName(t.dir, byTitle[s]))
	})
	modeSelect.SetSelected(titles[0])

	content := container.NewVBox(
		container.NewCenter(preview),
		widget.NewLabel("Use for:"),
		modeSelect,
		widget.NewLabel("File name:"),
		nameEntry,
	)

	dialog.ShowCustomConfirm("Save Template", "Save", "Cancel", content, func(confirm bool) {
		if !confirm {
			return
		}
		path, err := t.Save(byTitle[modeSelect.Selected], nameEntry.Text, img)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		dialog.ShowInformation("Saved", fmt.Sprintf("%s now uses %s", modeSelect.Selected, path), win)
		win.Close()
	}, win)
}

// SuggestName proposes a file name for a new template of m that does not
// overwrite an existing one: golden_cookie.png, golden_cookie_2.png, ...
func SuggestName(dir string, m config.Mode) string {
	base := strings.TrimSuffix(filepath.Base(config.DefaultModeSettings(m).Template), ".png")
	name := base + ".png"
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s_%d.png", base, i)
	}
}

func openDir(path string) {
	var cmd *exec.Cmd
	absPath, _ := filepath.Abs(path)

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("explorer", absPath)
	default:
		cmd = exec.Command("xdg-open", absPath)
	}
	_ = cmd.Start()
}
