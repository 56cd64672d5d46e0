// Package cookie is the fyne front end of the clicker: one card per mode,
// a template capture tool and the log list.
package cookie

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/engine"
	"github.com/ConserveLee/cookie-idle/internal/logger"
)

// Controller is the part of the scheduler the panel drives
type Controller interface {
	Toggle(m config.Mode) bool
	Status(m config.Mode) engine.ModeStatus
	Config() config.BotConfig
	ResetSessionCounter(m config.Mode)
	ResetLifetimeCounter(m config.Mode)
	ApplySettings(m config.Mode, in config.Input) error
	OnUpdate(fn func())
}

// Panel holds the widgets bound to a Controller
type Panel struct {
	win   fyne.Window
	ctl   Controller
	log   *logger.AppLogger
	cards map[config.Mode]*modeCard
}

type modeCard struct {
	mode config.Mode

	status  binding.String
	session binding.String
	total   binding.String
	toggle  *widget.Button

	key        *widget.Entry
	seconds    *widget.Entry
	millis     *widget.Entry
	confidence *widget.Entry
	template   *widget.Entry
}

// Title is the label shown for a mode
func Title(m config.Mode) string {
	switch m {
	case config.Transient:
		return "Golden Cookie"
	case config.Stationary:
		return "Big Cookie"
	default:
		return m.String()
	}
}

// NewPanel builds the main window content
func NewPanel(win fyne.Window, ctl Controller, log *logger.AppLogger, logData binding.StringList, templates *TemplateTool) fyne.CanvasObject {
	p := &Panel{
		win:   win,
		ctl:   ctl,
		log:   log,
		cards: make(map[config.Mode]*modeCard, 2),
	}

	var cards []fyne.CanvasObject
	for _, m := range config.Modes() {
		c := p.newCard(m)
		p.cards[m] = c
		cards = append(cards, p.cardView(c))
	}
	p.refresh()
	ctl.OnUpdate(func() { fyne.Do(p.refresh) })

	logList := widget.NewListWithData(
		logData,
		func() fyne.CanvasObject { return widget.NewLabel("Log entry template") },
		func(i binding.DataItem, o fyne.CanvasObject) { o.(*widget.Label).Bind(i.(binding.String)) },
	)

	// Auto-scroll
	logData.AddListener(binding.NewDataListener(func() {
		list, _ := logData.Get()
		if len(list) > 0 {
			logList.ScrollToBottom()
		}
	}))

	tabs := container.NewAppTabs(
		container.NewTabItem("Clicker", container.NewVScroll(container.NewVBox(cards...))),
	)
	if templates != nil {
		tabs.Append(container.NewTabItem("Templates", templates.View(win)))
	}
	tabs.Append(container.NewTabItem("Log", logList))
	tabs.SetTabLocation(container.TabLocationTop)
	return tabs
}

func (p *Panel) newCard(m config.Mode) *modeCard {
	c := &modeCard{
		mode:       m,
		status:     binding.NewString(),
		session:    binding.NewString(),
		total:      binding.NewString(),
		key:        widget.NewEntry(),
		seconds:    widget.NewEntry(),
		millis:     widget.NewEntry(),
		confidence: widget.NewEntry(),
		template:   widget.NewEntry(),
	}
	c.toggle = widget.NewButton("Turn ON", func() {
		p.ctl.Toggle(m)
		p.refresh()
	})
	p.fillForm(c)
	return c
}

func (p *Panel) cardView(c *modeCard) fyne.CanvasObject {
	statusLabel := widget.NewLabelWithData(c.status)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}

	counters := container.NewGridWithColumns(3,
		widget.NewLabel("Session:"), widget.NewLabelWithData(c.session),
		widget.NewButton("Reset", func() {
			p.ctl.ResetSessionCounter(c.mode)
			p.refresh()
		}),
		widget.NewLabel("Total:"), widget.NewLabelWithData(c.total),
		widget.NewButton("Reset", func() {
			p.confirmLifetimeReset(c.mode)
		}),
	)

	form := widget.NewForm(
		widget.NewFormItem("Toggle key", c.key),
		widget.NewFormItem("Interval (s)", c.seconds),
		widget.NewFormItem("Interval (ms)", c.millis),
		widget.NewFormItem("Confidence", c.confidence),
		widget.NewFormItem("Template", c.template),
	)
	form.SubmitText = "Apply"
	form.OnSubmit = func() { p.apply(c) }

	return widget.NewCard(Title(c.mode), "", container.NewVBox(
		container.NewHBox(statusLabel, c.toggle),
		counters,
		widget.NewSeparator(),
		form,
	))
}

func (p *Panel) apply(c *modeCard) {
	in := config.Input{
		ToggleKey:       c.key.Text,
		IntervalSeconds: c.seconds.Text,
		IntervalMillis:  c.millis.Text,
		Confidence:      c.confidence.Text,
		Template:        c.template.Text,
	}
	if err := p.ctl.ApplySettings(c.mode, in); err != nil {
		p.log.Warn("%s settings not applied: %v", Title(c.mode), err)
		dialog.ShowError(err, p.win)
		p.fillForm(c)
		return
	}
	p.fillForm(c)
	p.refresh()
}

func (p *Panel) confirmLifetimeReset(m config.Mode) {
	if p.win == nil {
		p.ctl.ResetLifetimeCounter(m)
		p.refresh()
		return
	}
	dialog.ShowConfirm("Reset total", fmt.Sprintf("Reset the %s total counter to 0?", Title(m)), func(ok bool) {
		if !ok {
			return
		}
		p.ctl.ResetLifetimeCounter(m)
		p.refresh()
	}, p.win)
}

// fillForm shows the settings currently in effect
func (p *Panel) fillForm(c *modeCard) {
	in := config.InputFrom(p.ctl.Config().Mode(c.mode))
	c.key.SetText(in.ToggleKey)
	c.seconds.SetText(in.IntervalSeconds)
	c.millis.SetText(in.IntervalMillis)
	c.confidence.SetText(in.Confidence)
	c.template.SetText(in.Template)
}

// refresh copies scheduler state into the bindings. Must run on the fyne goroutine.
func (p *Panel) refresh() {
	for m, c := range p.cards {
		st := p.ctl.Status(m)
		_ = c.status.Set(StatusText(st))
		_ = c.session.Set(engine.FormatCount(st.Session))
		_ = c.total.Set(engine.FormatCount(st.Lifetime))
		if st.Enabled {
			c.toggle.SetText("Turn OFF")
		} else {
			c.toggle.SetText("Turn ON")
		}
	}
}

// StatusText renders the status line of one mode
func StatusText(st engine.ModeStatus) string {
	state := "OFF"
	if st.Enabled {
		state = "ON"
	}
	text := fmt.Sprintf("Status: %s [%s]", state, strings.ToUpper(st.Key))
	if st.Mode == config.Stationary && st.Enabled {
		text += " - " + st.Phase.String()
	}
	return text
}
