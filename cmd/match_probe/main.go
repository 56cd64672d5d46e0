// match_probe runs the template matcher against a saved screenshot and prints
// where each template is found, to tune tolerance and confidence offline.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/engine/screen"
)

type flags struct {
	screen      *string
	tolerances  *[]float64
	confidences *[]float64
}

func newFlagSet() (*pflag.FlagSet, flags) {
	fs := pflag.NewFlagSet("match_probe", pflag.ContinueOnError)
	return fs, flags{
		screen:      fs.StringP("screen", "s", "screen.png", "screenshot to search"),
		tolerances:  fs.Float64Slice("tolerance", []float64{constants.DefaultTolerance}, "maximum RGB color distance between a screen and a template pixel; several values are tried in turn"),
		confidences: fs.Float64Slice("confidence", []float64{0.8, 0.9, 1}, "confidences to try"),
	}
}

func main() {
	fs, f := newFlagSet()
	screenPath, tolerances, confidences := f.screen, f.tolerances, f.confidences
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: match_probe [-s screen.png] template.png...")
		os.Exit(2)
	}

	screenImg, err := screen.LoadImage(*screenPath)
	if err != nil {
		fmt.Printf("Failed to load screen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Screen size: %dx%d\n", screenImg.Bounds().Dx(), screenImg.Bounds().Dy())

	for _, tplPath := range fs.Args() {
		tplImg, err := screen.LoadImage(tplPath)
		if err != nil {
			fmt.Printf("Failed to load template %s: %v\n", tplPath, err)
			continue
		}
		fmt.Printf("\n=== %s (%dx%d) ===\n", tplPath, tplImg.Bounds().Dx(), tplImg.Bounds().Dy())

		for _, tolerance := range *tolerances {
			m := screen.Matcher{Tolerance: tolerance}
			var cols []string
			for _, conf := range *confidences {
				p, score, ok := m.Find(screenImg, tplImg, conf)
				if !ok {
					cols = append(cols, fmt.Sprintf("%.2f: miss", conf))
					continue
				}
				center := p.Add(tplImg.Bounds().Size().Div(2))
				cols = append(cols, fmt.Sprintf("%.2f: %v score %.3f", conf, center, score))
			}
			fmt.Printf("  tolerance %.0f  %s\n", tolerance, strings.Join(cols, " | "))
		}
	}
}
