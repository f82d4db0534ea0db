// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package camera derives a virtual zoom/pan path from what each step does and
// renders it as an ffmpeg crop+scale filter graph.
package camera

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/tourcast/internal/tour"
)

// Mode selects how aggressively the camera zooms.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeAuto   Mode = "auto"
	ModeMobile Mode = "mobile"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "", ModeOff:
		return ModeOff, nil
	case ModeAuto, ModeMobile:
		return m, nil
	default:
		return "", fmt.Errorf("unknown zoom mode %q (want off, auto or mobile)", s)
	}
}

// Focus is a named screen region.
type Focus string

const (
	FocusEditor   Focus = "editor"
	FocusTerminal Focus = "terminal"
	FocusFull     Focus = "full"
)

// Preset is a camera state in reference coordinates (1920x1080).
type Preset struct {
	CX, CY, Zoom float64
}

const (
	refWidth  = 1920.0
	refHeight = 1080.0

	// DefaultTransition is the ease duration between camera states.
	DefaultTransition = 600 * time.Millisecond
	// NavHold is how long the camera stays wide when jumping between regions.
	NavHold = 800 * time.Millisecond
	// OutroLead is how long before the end the camera returns to full view.
	OutroLead = 2 * time.Second

	mobileFactor = 1.15
	maxZoom      = 3.0
)

var Presets = map[Focus]Preset{
	FocusEditor:   {CX: 780, CY: 400, Zoom: 2.2},
	FocusTerminal: {CX: 960, CY: 870, Zoom: 2.4},
	FocusFull:     {CX: 960, CY: 540, Zoom: 1.0},
}

// ActionFocus maps an action to the region it draws attention to. Empty
// means the action does not move attention.
func ActionFocus(kind string) Focus {
	switch kind {
	case tour.ActionTypeText, tour.ActionFocusEditor, tour.ActionHighlightLines, tour.ActionSelectAllAndDelete:
		return FocusEditor
	case tour.ActionTerminalType:
		return FocusTerminal
	case tour.ActionCommandPalette, tour.ActionDismissPopups, tour.ActionWaitForLoad,
		tour.ActionWaitForSelector, tour.ActionHideSecondarySidebar:
		return FocusFull
	default:
		return ""
	}
}

// DominantFocus picks the region a step spends most of its actions on. Any
// terminal action wins; ties go to the region seen first.
func DominantFocus(actions []tour.Action) Focus {
	counts := map[Focus]int{}
	var order []Focus
	for _, a := range actions {
		f := ActionFocus(a.Kind)
		if f == "" {
			continue
		}
		if counts[f] == 0 {
			order = append(order, f)
		}
		counts[f]++
	}
	if len(order) == 0 {
		return FocusEditor
	}
	if counts[FocusTerminal] > 0 {
		return FocusTerminal
	}
	best := order[0]
	for _, f := range order[1:] {
		if counts[f] > counts[best] {
			best = f
		}
	}
	return best
}

// Keyframe is a camera state reached at At, easing in over Transition.
// Coordinates are in reference space.
type Keyframe struct {
	At         time.Duration
	CX, CY     float64
	Zoom       float64
	Transition time.Duration
}

func (k Keyframe) same(o Keyframe) bool {
	return abs(k.Zoom-o.Zoom) < 0.001 && abs(k.CX-o.CX) < 1 && abs(k.CY-o.CY) < 1
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// StepSpan locates a step in the final video.
type StepSpan struct {
	Step  tour.Step
	Start time.Duration
}

func stepTarget(st tour.Step) (Focus, Preset, time.Duration) {
	if z := st.Zoom; z != nil {
		focus := Focus(strings.ToLower(z.Focus))
		p, ok := Presets[focus]
		if !ok {
			focus, p = FocusEditor, Presets[FocusEditor]
		}
		if z.CX != nil {
			p.CX = *z.CX
		}
		if z.CY != nil {
			p.CY = *z.CY
		}
		if z.Z != nil {
			p.Zoom = *z.Z
		}
		transition := DefaultTransition
		if z.TransitionMS != nil {
			transition = time.Duration(*z.TransitionMS) * time.Millisecond
		}
		return focus, p, transition
	}
	if st.IsSlides() {
		return FocusFull, Presets[FocusFull], DefaultTransition
	}
	f := DominantFocus(st.AllActions())
	return f, Presets[f], DefaultTransition
}

// Path builds the keyframe timeline. It starts and ends on the full view;
// switching directly between two zoomed regions passes through full view
// for NavHold. Mode off yields no keyframes.
func Path(spans []StepSpan, total time.Duration, mode Mode) []Keyframe {
	if mode == ModeOff || mode == "" {
		return nil
	}
	full := Presets[FocusFull]
	kfs := []Keyframe{{At: 0, CX: full.CX, CY: full.CY, Zoom: full.Zoom}}

	prev := FocusFull
	for _, sp := range spans {
		focus, p, transition := stepTarget(sp.Step)
		target := Keyframe{At: sp.Start, CX: p.CX, CY: p.CY, Zoom: p.Zoom, Transition: transition}
		if focus != prev && prev != FocusFull && focus != FocusFull {
			kfs = append(kfs, Keyframe{At: sp.Start, CX: full.CX, CY: full.CY, Zoom: full.Zoom, Transition: transition})
			target.At = sp.Start + NavHold
		}
		kfs = append(kfs, target)
		prev = focus
	}

	if total > 0 {
		kfs = append(kfs, Keyframe{
			At: max(0, total-OutroLead), CX: full.CX, CY: full.CY, Zoom: full.Zoom,
			Transition: DefaultTransition,
		})
	}

	if mode == ModeMobile {
		for i := range kfs {
			if kfs[i].Zoom > 1.0 {
				kfs[i].Zoom = min(kfs[i].Zoom*mobileFactor, maxZoom)
			}
		}
	}
	return kfs
}
