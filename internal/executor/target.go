// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package executor runs a step's actions and assertions against a Target and
// retries failed steps. It has no knowledge of the DOM or of any particular
// web application; those live behind Target.
package executor

import (
	"context"
	"time"
)

// ConditionKind selects what WaitFor waits on.
type ConditionKind int

const (
	// CondLoad waits for a page load state ("load", "domcontentloaded", "networkidle").
	CondLoad ConditionKind = iota
	// CondVisible waits until Selector is visible.
	CondVisible
	// CondHidden waits until Selector is hidden or detached.
	CondHidden
)

func (k ConditionKind) String() string {
	switch k {
	case CondLoad:
		return "load"
	case CondVisible:
		return "visible"
	case CondHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

type Condition struct {
	Kind     ConditionKind
	Selector string
	State    string
}

// Region is a named area of the target application. The adapter maps it to
// whatever selectors or scripts the application needs.
type Region string

const (
	RegionEditor           Region = "editor"
	RegionTerminal         Region = "terminal"
	RegionSecondarySidebar Region = "secondary_sidebar"
	RegionPopups           Region = "popups"
)

// ScrollRequest scrolls to a named position ("top", "bottom") or a pixel
// offset, animated over Duration.
type ScrollRequest struct {
	To       string
	Pixels   int
	Absolute bool
	Duration time.Duration
}

// Target is the capability surface the executor drives. Every call must
// honor ctx cancellation.
type Target interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Type sends text one character at a time, delay apart.
	Type(ctx context.Context, text string, delay time.Duration) error
	// Press sends a key chord such as "Enter" or "Control+Shift+P".
	Press(ctx context.Context, key string) error
	Click(ctx context.Context, selector string) error
	Visible(ctx context.Context, selector string) (bool, error)
	WaitFor(ctx context.Context, cond Condition) error
	Focus(ctx context.Context, region Region) error
	Hide(ctx context.Context, region Region) error
	Scroll(ctx context.Context, req ScrollRequest) error
}
