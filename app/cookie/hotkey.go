package cookie

import (
	"sync"

	"fyne.io/fyne/v2"
)

// WindowKeys turns key presses on a fyne window into named key events such
// as "F8". Presses are only seen while the window has keyboard focus.
type WindowKeys struct {
	mu        sync.Mutex
	listeners []func(string)
}

// NewWindowKeys starts listening on win
func NewWindowKeys(win fyne.Window) *WindowKeys {
	k := &WindowKeys{}
	win.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		k.emit(string(ev.Name))
	})
	return k
}

// OnKeyPress registers fn for every key press
func (k *WindowKeys) OnKeyPress(fn func(key string)) {
	k.mu.Lock()
	k.listeners = append(k.listeners, fn)
	k.mu.Unlock()
}

func (k *WindowKeys) emit(key string) {
	k.mu.Lock()
	listeners := append(([]func(string))(nil), k.listeners...)
	k.mu.Unlock()

	for _, fn := range listeners {
		fn(key)
	}
}
