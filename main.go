package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/data/binding"

	"github.com/ConserveLee/cookie-idle/app/cookie"
	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/engine"
	"github.com/ConserveLee/cookie-idle/internal/engine/pointer"
	"github.com/ConserveLee/cookie-idle/internal/engine/screen"
	"github.com/ConserveLee/cookie-idle/internal/logger"
	"github.com/ConserveLee/cookie-idle/internal/metrics"
	"github.com/ConserveLee/cookie-idle/internal/options"
	"github.com/ConserveLee/cookie-idle/internal/store"
)

func main() {
	opts, err := options.Load(os.Args[1:])
	if errors.Is(err, options.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, _ := logger.ParseLevel(opts.LogLevel)

	myApp := app.New()
	myWindow := myApp.NewWindow("Cookie Idle")
	myWindow.Resize(fyne.NewSize(500, 700))

	logData := binding.NewStringList()
	log := logger.New(level, logger.BindingSink(logData))
	defer log.Sync()

	ctx := context.Background()
	st, rec := loadSettings(ctx, log, opts.StorePath)

	locator := screen.NewLocator(opts.Display)
	m := metrics.New()
	deps := engine.Deps{
		Locator: locator,
		Pointer: pointer.New(),
		Logger:  log,
		Metrics: m,
	}
	if st != nil {
		deps.Store = st
	}
	sched := engine.New(rec, deps)

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server stopped: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		log.Info("Serving metrics on http://%s/metrics", opts.MetricsAddr)
	}

	origin := pointer.DisplayOrigin(opts.Display)
	log.Info("Display %d of %d, origin (%d, %d)", opts.Display, screen.Displays(), origin.X, origin.Y)

	templates := cookie.NewTemplateTool(sched, log, filepath.Join(filepath.Dir(opts.StorePath), "templates"), opts.Display, locator.Forget)
	myWindow.SetContent(cookie.NewPanel(myWindow, sched, log, logData, templates))

	sched.Listen(cookie.NewWindowKeys(myWindow))
	sched.StartAll()

	myWindow.SetCloseIntercept(func() {
		stopCtx, cancel := context.WithTimeout(ctx, constants.JoinTimeout+constants.SaveTimeout)
		defer cancel()
		if err := sched.StopAll(stopCtx); err != nil {
			log.Error("Final save failed: %v", err)
		}
		if st != nil {
			if err := st.Close(); err != nil {
				log.Warn("Failed to close settings: %v", err)
			}
		}
		myWindow.Close()
	})

	myWindow.ShowAndRun()
}

// loadSettings opens the store and reads the saved record. It never fails:
// an unreadable store is moved aside, and when no store can be opened at all
// the bot runs on defaults without saving.
func loadSettings(ctx context.Context, log *logger.AppLogger, path string) (store.Store, config.Record) {
	st, moved, err := store.OpenOrReset(ctx, path)
	if moved != "" {
		log.Warn("Settings %s could not be opened, moved to %s and started over", path, moved)
	}
	if err != nil {
		log.Error("Failed to open settings %s, running on defaults without saving: %v", path, err)
		return nil, config.Default()
	}

	rec, reset, err := st.Load(ctx)
	if err != nil {
		log.Warn("Settings could not be read, using defaults: %v", err)
	}
	if len(reset) > 0 {
		log.Warn("Settings reset to defaults: %s", strings.Join(reset, ", "))
	}
	return st, rec
}
