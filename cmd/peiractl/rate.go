package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"peira/internal/rating"
)

func runRate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("rate", flag.ContinueOnError)
	low := fs.Int("low", 0, "scale low anchor")
	high := fs.Int("high", 0, "scale high anchor")
	precision := fs.Int("precision", 0, "fractional sensitivity: 1|10|100")
	boundMin := fs.Float64("bound-min", 0, "lowest acceptable response")
	boundMax := fs.Float64("bound-max", 0, "highest acceptable response")
	markerStart := fs.Float64("marker-start", 0, "pre-place the marker at a value")
	minTime := fs.Float64("min-time", 0, "seconds before a response can be accepted")
	maxTime := fs.Float64("max-time", 0, "seconds before the current placement auto-finalizes")
	singleClick := fs.Bool("single-click", false, "accept on first placement")
	drawOnly := fs.Bool("draw-only", false, "render frames without processing input")
	frames := fs.Int("frames", 3, "frame count for --draw-only")
	interval := fs.Duration("interval", 200*time.Millisecond, "frame interval for --draw-only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg := rating.Config{
		Low:         *low,
		High:        *high,
		Precision:   *precision,
		MinTime:     time.Duration(*minTime * float64(time.Second)),
		MaxTime:     time.Duration(*maxTime * float64(time.Second)),
		SingleClick: *singleClick,
	}
	if setFlags["bound-min"] || setFlags["bound-max"] {
		// A missing side falls open; NewScale intersects with the scale
		// range.
		bounds := rating.Bounds{Lower: math.Inf(-1), Upper: math.Inf(1)}
		if setFlags["bound-min"] {
			bounds.Lower = *boundMin
		}
		if setFlags["bound-max"] {
			bounds.Upper = *boundMax
		}
		cfg.Bounds = &bounds
	}
	if setFlags["marker-start"] {
		cfg.MarkerStart = markerStart
	}

	scale, err := rating.NewScale(cfg)
	if err != nil {
		return err
	}

	if *drawOnly {
		return drawFrames(scale, os.Stdout, *frames, *interval)
	}
	return rateLoop(scale, os.Stdin, os.Stdout)
}

// drawFrames renders the scale without ever handing it input, so nothing
// typed while it runs can register as a response.
func drawFrames(scale *rating.Scale, out io.Writer, frames int, interval time.Duration) error {
	if frames <= 0 {
		frames = 1
	}
	for i := 0; i < frames; i++ {
		scale.Update()
		fmt.Fprintln(out, scale.View())
		if i < frames-1 {
			time.Sleep(interval)
		}
	}
	fmt.Fprintln(out, "draw-only: no response collected")
	return nil
}

// rateLoop drives one interactive rating from line input: l/r move the
// marker, digits jump, enter accepts, s skips.
func rateLoop(scale *rating.Scale, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scale.Update()
	for !scale.Finished() {
		fmt.Fprintln(out, scale.View())
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		scale.HandleKey(keyForInput(scanner.Text()))
		scale.Update()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, scale.View())

	if value, ok := scale.Rating(); ok {
		rt, _ := scale.RT()
		fmt.Fprintf(out, "rating=%g rt=%.3fs\n", value, rt.Seconds())
		return nil
	}
	if scale.Skipped() {
		fmt.Fprintln(out, "rating skipped")
		return nil
	}
	fmt.Fprintln(out, "no response collected")
	return nil
}

func keyForInput(line string) string {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "l", "left":
		return "left"
	case "r", "right":
		return "right"
	case "", "a", "accept", "enter", "return":
		return "return"
	case "s", "skip", "tab":
		return "tab"
	default:
		return strings.ToLower(strings.TrimSpace(line))
	}
}
