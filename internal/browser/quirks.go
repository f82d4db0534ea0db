// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/tourcast/internal/executor"
)

// Application-specific selectors. These target a browser-hosted code editor
// (editor, integrated terminal, auxiliary sidebar) and common cookie and
// consent banners. Nothing outside this package knows about them.
var (
	editorSelectors   = []string{".monaco-editor textarea", ".cm-content", "textarea"}
	terminalSelectors = []string{".xterm-helper-textarea", ".terminal textarea"}
	sidebarSelectors  = []string{".part.auxiliarybar", "#workbench\\.parts\\.auxiliarybar"}
	popupSelectors    = []string{
		".notifications-toasts .codicon-notifications-clear",
		"#onetrust-accept-btn-handler",
		"[aria-label='Accept all']",
		"button[data-testid='cookie-accept']",
		".cookie-banner button",
	}
	overlaySelectors = []string{".monaco-dialog-modal-block", ".notifications-toasts", ".cookie-banner"}
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsList(list []string) string {
	b, _ := json.Marshal(list)
	return string(b)
}

// visibleExpr evaluates to true when selector matches a rendered element.
func visibleExpr(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const s = window.getComputedStyle(el);
  if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0') return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
})()`, jsString(selector))
}

func hiddenExpr(selector string) string {
	return "!" + visibleExpr(selector)
}

func loadExpr(state string) string {
	if state == "domcontentloaded" {
		return `document.readyState !== 'loading'`
	}
	return `document.readyState === 'complete'`
}

// focusScript focuses the first matching element and reports success.
func focusScript(region executor.Region) (string, error) {
	var sels []string
	switch region {
	case executor.RegionEditor:
		sels = editorSelectors
	case executor.RegionTerminal:
		sels = terminalSelectors
	default:
		return "", fmt.Errorf("region %q cannot be focused", region)
	}
	return fmt.Sprintf(`(() => {
  for (const sel of %s) {
    const el = document.querySelector(sel);
    if (el) { el.focus(); return true; }
  }
  return false;
})()`, jsList(sels)), nil
}

// hideScript removes or dismisses a region. Missing elements are not an error.
func hideScript(region executor.Region) (string, error) {
	switch region {
	case executor.RegionSecondarySidebar:
		return fmt.Sprintf(`(() => {
  let n = 0;
  for (const sel of %s) {
    document.querySelectorAll(sel).forEach(el => { el.style.display = 'none'; n++; });
  }
  window.dispatchEvent(new Event('resize'));
  return n > 0;
})()`, jsList(sidebarSelectors)), nil
	case executor.RegionPopups:
		return fmt.Sprintf(`(() => {
  let n = 0;
  for (const sel of %s) {
    document.querySelectorAll(sel).forEach(el => { el.click(); n++; });
  }
  for (const sel of %s) {
    document.querySelectorAll(sel).forEach(el => { el.remove(); n++; });
  }
  return n > 0;
})()`, jsList(popupSelectors), jsList(overlaySelectors)), nil
	default:
		return "", fmt.Errorf("region %q cannot be hidden", region)
	}
}

// scrollScript animates window scrolling over req.Duration with an ease-in-out
// curve. The returned promise resolves when the animation ends.
func scrollScript(req executor.ScrollRequest) string {
	target := "0"
	switch {
	case req.Absolute:
		target = fmt.Sprintf("%d", req.Pixels)
	case req.To == "bottom":
		target = "document.documentElement.scrollHeight - window.innerHeight"
	}
	return fmt.Sprintf(`new Promise(resolve => {
  const start = window.scrollY;
  const end = Math.max(0, %s);
  const ms = %d;
  const t0 = performance.now();
  const ease = t => t < 0.5 ? 2*t*t : 1 - Math.pow(-2*t + 2, 2) / 2;
  const tick = now => {
    const p = ms > 0 ? Math.min(1, (now - t0) / ms) : 1;
    window.scrollTo(0, start + (end - start) * ease(p));
    if (p < 1) requestAnimationFrame(tick); else resolve(true);
  };
  requestAnimationFrame(tick);
})`, target, req.Duration/time.Millisecond)
}
