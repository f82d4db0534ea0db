// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
)

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowdown":  kb.ArrowDown,
	"arrowup":    kb.ArrowUp,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"space":      " ",
}

var modifierNames = map[string]input.Modifier{
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"shift":   input.ModifierShift,
	"alt":     input.ModifierAlt,
	"meta":    input.ModifierMeta,
	"cmd":     input.ModifierMeta,
}

// chord is a parsed key combination such as "Control+Shift+P".
type chord struct {
	key       string
	modifiers []input.Modifier
}

func parseChord(s string) (chord, error) {
	parts := strings.Split(s, "+")
	// "Control++" presses the plus key.
	if strings.HasSuffix(s, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}
	var c chord
	for i, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if i < len(parts)-1 {
			m, ok := modifierNames[name]
			if !ok {
				return chord{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			c.modifiers = append(c.modifiers, m)
			continue
		}
		if k, ok := namedKeys[name]; ok {
			c.key = k
		} else if len([]rune(p)) == 1 {
			c.key = strings.ToLower(p)
		} else {
			return chord{}, fmt.Errorf("unknown key %q in %q", p, s)
		}
	}
	if c.key == "" {
		return chord{}, fmt.Errorf("empty key chord")
	}
	return c, nil
}
