// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"fmt"
	"strings"
	"time"
)

type segment struct {
	start, end time.Duration // end == 0 means until the end of input
	from, to   Keyframe
}

// segments cuts the timeline at each keyframe. A segment starts at its
// keyframe's At, eases from the previously shown state into the keyframe's
// state, and holds it until the next keyframe. Keyframes that would produce
// empty segments are dropped.
func segments(kfs []Keyframe, total time.Duration) []segment {
	var out []segment
	shown := kfs[0]
	for i, cur := range kfs {
		if total > 0 && cur.At >= total {
			break
		}
		var end time.Duration
		if i+1 < len(kfs) {
			end = kfs[i+1].At
			if total > 0 && end > total {
				end = total
			}
			if end <= cur.At {
				continue
			}
		}
		out = append(out, segment{start: cur.At, end: end, from: shown, to: cur})
		shown = cur
	}
	return out
}

func fsec(d time.Duration) string {
	return fmt.Sprintf("%.4f", d.Seconds())
}

// FilterGraph renders keyframes as a complex filter graph over input 0's
// video, labeled [vout]. Held states use a cheap crop+scale; transitions use
// zoompan with smoothstep easing on the output frame counter. Returns "" when
// there is nothing to animate.
func FilterGraph(kfs []Keyframe, total time.Duration, fps, width, height int) string {
	if len(kfs) < 2 {
		return ""
	}
	segs := segments(kfs, total)
	if len(segs) == 0 {
		return ""
	}
	sx := float64(width) / refWidth
	sy := float64(height) / refHeight

	var parts []string
	split := make([]string, len(segs))
	for i := range segs {
		split[i] = fmt.Sprintf("[r%d]", i)
	}
	parts = append(parts, fmt.Sprintf("[0:v]split=%d%s", len(segs), strings.Join(split, "")))

	outs := make([]string, len(segs))
	for i, sg := range segs {
		trim := "trim=start=" + fsec(sg.start)
		if sg.end > 0 {
			trim += ":end=" + fsec(sg.end)
		}
		var camera string
		if sg.from.same(sg.to) {
			camera = staticCrop(sg.to, width, height)
		} else {
			ease := sg.to.Transition
			if sg.end > 0 {
				ease = min(ease, sg.end-sg.start)
			}
			frames := max(1, int(ease.Seconds()*float64(fps)))
			camera = animatedZoom(sg.from, sg.to, frames, fps, width, height, sx, sy)
		}
		outs[i] = fmt.Sprintf("[s%d]", i)
		parts = append(parts, fmt.Sprintf("[r%d]%s,setpts=PTS-STARTPTS,%s%s", i, trim, camera, outs[i]))
	}
	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", strings.Join(outs, ""), len(segs)))
	return strings.Join(parts, ";\n")
}

// staticCrop crops an even-sized window around the keyframe center and
// scales it back to the frame size.
func staticCrop(k Keyframe, width, height int) string {
	zoom := max(k.Zoom, 1.0)
	w := max(2, int(float64(width)/zoom)/2*2)
	h := max(2, int(float64(height)/zoom)/2*2)
	x := clampInt(int(k.CX*float64(width)/refWidth-float64(w)/2), 0, width-w)
	y := clampInt(int(k.CY*float64(height)/refHeight-float64(h)/2), 0, height-h)
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d:flags=lanczos,setsar=1", w, h, x, y, width, height)
}

// animatedZoom eases from one state to another over frames output frames,
// then holds.
func animatedZoom(from, to Keyframe, frames, fps, width, height int, sx, sy float64) string {
	p := fmt.Sprintf("clip(on/%d\\,0\\,1)", frames)
	s := fmt.Sprintf("(%s*%s*(3-2*%s))", p, p, p)
	z := fmt.Sprintf("max(1\\,%.3f+%.3f*%s)", from.Zoom, to.Zoom-from.Zoom, s)
	cx := fmt.Sprintf("(%.1f+%.1f*%s)", from.CX*sx, (to.CX-from.CX)*sx, s)
	cy := fmt.Sprintf("(%.1f+%.1f*%s)", from.CY*sy, (to.CY-from.CY)*sy, s)
	x := fmt.Sprintf("clip(%s-iw/zoom/2\\,0\\,iw-iw/zoom)", cx)
	y := fmt.Sprintf("clip(%s-ih/zoom/2\\,0\\,ih-ih/zoom)", cy)
	return fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=1:s=%dx%d:fps=%d,setsar=1", z, x, y, width, height, fps)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
