// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/tourcast/internal/executor"
	"github.com/ManuGH/tourcast/internal/timing"
	"github.com/ManuGH/tourcast/internal/tour"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBrowser struct {
	mu       sync.Mutex
	clock    *executor.StepClock
	sessions []*fakeSession
	// clickErrs fails click_selector for the first N sessions.
	clickErrs int
	// failClicks fails that many click_selector calls across all sessions.
	failClicks int
	// hangWaits makes WaitFor block until its deadline in the first N sessions.
	hangWaits int
	sinkErr   error
}

func (b *fakeBrowser) takeClickFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failClicks == 0 {
		return false
	}
	b.failClicks--
	return true
}

func (b *fakeBrowser) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSession{browser: b, clock: b.clock, sinkErr: b.sinkErr}
	if len(b.sessions) < b.clickErrs {
		s.clickErr = errors.New("element detached")
	}
	s.hangWait = len(b.sessions) < b.hangWaits
	b.sessions = append(b.sessions, s)
	return s, nil
}

func (b *fakeBrowser) openSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := 0
	for _, s := range b.sessions {
		if !s.closed {
			open++
		}
	}
	return open
}

type fakeSession struct {
	browser  *fakeBrowser
	hangWait bool
	clock    *executor.StepClock
	clickErr error
	sinkErr  error
	location string
	navs     int
	closed   bool
	recs     []*fakeRecording
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.navs++
	s.location = url
	return nil
}
func (s *fakeSession) Location(context.Context) (string, error) { return s.location, nil }
func (s *fakeSession) Title(context.Context) (string, error)    { return "", nil }
func (s *fakeSession) Type(context.Context, string, time.Duration) error {
	return nil
}
func (s *fakeSession) Press(context.Context, string) error { return nil }
func (s *fakeSession) Click(context.Context, string) error {
	if s.browser.takeClickFailure() {
		return errors.New("element not interactable")
	}
	return s.clickErr
}
func (s *fakeSession) Visible(context.Context, string) (bool, error) {
	return true, nil
}
func (s *fakeSession) WaitFor(ctx context.Context, _ executor.Condition) error {
	if s.hangWait {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
func (s *fakeSession) Focus(context.Context, executor.Region) error      { return nil }
func (s *fakeSession) Hide(context.Context, executor.Region) error       { return nil }
func (s *fakeSession) Scroll(context.Context, executor.ScrollRequest) error {
	return nil
}

func (s *fakeSession) Record(ctx context.Context, path string) (Recording, error) {
	if err := os.WriteFile(path, []byte("raw"), 0o600); err != nil {
		return nil, err
	}
	r := &fakeRecording{clock: s.clock, start: s.clock.Now(), sinkErr: s.sinkErr}
	s.recs = append(s.recs, r)
	return r, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeRecording struct {
	clock   *executor.StepClock
	start   time.Time
	sinkErr error
	stops   int
}

func (r *fakeRecording) Offset() time.Duration       { return r.clock.Now().Sub(r.start) }
func (r *fakeRecording) Err() error                  { return r.sinkErr }
func (r *fakeRecording) Stop(ctx context.Context) error { r.stops++; return nil }

func newPlan(t *testing.T, mode string, steps []tour.Step, durations ...time.Duration) Plan {
	t.Helper()
	retries := 2
	entries := make([]timing.Entry, len(steps))
	for i, st := range steps {
		entries[i] = timing.Entry{StepID: st.ID, Duration: durations[i]}
	}
	return Plan{
		Spec: &tour.Spec{Settings: tour.Settings{
			Mode:              mode,
			MaxRetriesPerStep: &retries,
			Viewport:          tour.Viewport{Width: 1280, Height: 720},
		}},
		Steps:    steps,
		Timeline: timing.Timeline{Entries: entries},
		ClipDir:  filepath.Join(t.TempDir(), "clips"),
	}
}

func newManager(b *fakeBrowser) *Manager {
	return &Manager{
		Browser:  b,
		Executor: executor.New(tour.Settings{}, b.clock),
		Clock:    b.clock,
		FPS:      30,
	}
}

func TestCapture_IndependentOneClipPerStep(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock}
	steps := []tour.Step{
		{ID: "one", URL: "http://app.local/a", Actions: []tour.Action{{Kind: tour.ActionPause, Duration: 1}}},
		{ID: "two", URL: "http://app.local/b"},
	}
	plan := newPlan(t, tour.ModeIndependent, steps, 4*time.Second, 6*time.Second)

	res, err := newManager(b).Capture(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Clips, 2)
	assert.Equal(t, tour.ModeIndependent, res.Mode)
	for i, c := range res.Clips {
		assert.Equal(t, ClipStep, c.Kind)
		assert.FileExists(t, c.Path)
		assert.Equal(t, steps[i].ID, c.Placements[0].StepID)
	}
	assert.Equal(t, 4*time.Second, res.Clips[0].Placements[0].End)
	assert.Equal(t, 6*time.Second, res.Clips[1].Placements[0].End)
	assert.Len(t, b.sessions, 2)
	assert.Zero(t, b.openSessions())
	for _, s := range b.sessions {
		assert.Equal(t, 1, s.navs)
		assert.Equal(t, 1, s.recs[0].stops)
	}
}

func TestCapture_IndependentRetryRemovesFailedClips(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock, clickErrs: 2}
	steps := []tour.Step{{ID: "flaky", Actions: []tour.Action{{Kind: tour.ActionClickSelector, Selector: "#x"}}}}
	plan := newPlan(t, tour.ModeIndependent, steps, 2*time.Second)

	var outcomes []string
	plan.Observer = executor.ObserverFunc(func(_ context.Context, ev executor.AttemptEvent) {
		outcomes = append(outcomes, ev.Outcome)
	})

	res, err := newManager(b).Capture(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts["flaky"])
	assert.Equal(t, []string{"error", "error", "ok"}, outcomes)
	entries, err := os.ReadDir(plan.ClipDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the published clip remains")
	assert.Equal(t, "step-flaky.mkv", entries[0].Name())
	assert.Zero(t, b.openSessions())
}

func TestCapture_IndependentExhaustionAborts(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock, clickErrs: 10}
	steps := []tour.Step{{ID: "broken", Actions: []tour.Action{{Kind: tour.ActionClickSelector, Selector: "#x"}}}}
	plan := newPlan(t, tour.ModeIndependent, steps, 2*time.Second)

	_, err := newManager(b).Capture(context.Background(), plan)

	var fe *executor.StepFailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Len(t, b.sessions, 3)
	assert.Zero(t, b.openSessions())
}

func TestCapture_SinkFailureIsFatal(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock, sinkErr: errors.New("encoder exited")}
	steps := []tour.Step{{ID: "rec"}}
	plan := newPlan(t, tour.ModeIndependent, steps, time.Second)

	_, err := newManager(b).Capture(context.Background(), plan)

	var se *CaptureSinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "rec", se.StepID)
	assert.Len(t, b.sessions, 1, "sink failures are not retried")
	assert.Zero(t, b.openSessions())
}

func TestCapture_ContinuousOffsets(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock}
	steps := []tour.Step{
		{ID: "a", URL: "http://app.local/"},
		{ID: "b", URL: "http://app.local/", Actions: []tour.Action{{Kind: tour.ActionPause, Duration: 2}}},
		{ID: "c", URL: "http://app.local/"},
	}
	plan := newPlan(t, tour.ModeContinuous, steps, 3*time.Second, 5*time.Second, 2*time.Second)

	res, err := newManager(b).Capture(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Clips, 1)
	clip := res.Clips[0]
	assert.Equal(t, ClipContinuous, clip.Kind)
	assert.Equal(t, []Placement{
		{StepID: "a", Start: 0, End: 3 * time.Second},
		{StepID: "b", Start: 3 * time.Second, End: 8 * time.Second},
		{StepID: "c", Start: 8 * time.Second, End: 10 * time.Second},
	}, clip.Placements)
	require.Len(t, b.sessions, 1)
	assert.Equal(t, 1, b.sessions[0].navs, "continuous mode navigates once")
	assert.Len(t, b.sessions[0].recs, 1)
	assert.True(t, b.sessions[0].closed)
}

func TestCapture_ContinuousRetryPlacesFinalAttempt(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock, failClicks: 1}
	steps := []tour.Step{
		{ID: "a", URL: "http://app.local/"},
		{ID: "b", URL: "http://app.local/", Actions: []tour.Action{
			{Kind: tour.ActionPause, Duration: 4},
			{Kind: tour.ActionClickSelector, Selector: "#go"},
		}},
	}
	plan := newPlan(t, tour.ModeContinuous, steps, 2*time.Second, 8*time.Second)

	res, err := newManager(b).Capture(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts["b"])
	require.Len(t, res.Clips, 1)
	// The failed attempt of b covers 2s..6s; narration must follow the retry.
	assert.Equal(t, []Placement{
		{StepID: "a", Start: 0, End: 2 * time.Second},
		{StepID: "b", Start: 6 * time.Second, End: 14 * time.Second},
	}, res.Clips[0].Placements)
	assert.Len(t, b.sessions, 1, "continuous retries stay in the same session")
}

func TestCapture_ActionTimeoutThenSuccess(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock, hangWaits: 1}
	steps := []tour.Step{{ID: "search", Actions: []tour.Action{
		{Kind: tour.ActionWaitForSelector, Selector: "#results", TimeoutMS: 50},
	}}}
	plan := newPlan(t, tour.ModeIndependent, steps, 3*time.Second)

	var outcomes []string
	plan.Observer = executor.ObserverFunc(func(_ context.Context, ev executor.AttemptEvent) {
		outcomes = append(outcomes, ev.Outcome)
	})

	res, err := newManager(b).Capture(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"timeout", "ok"}, outcomes)
	assert.Equal(t, 2, res.Attempts["search"])
	require.Len(t, res.Clips, 1)
	entries, err := os.ReadDir(plan.ClipDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the timed-out attempt leaves no clip behind")
	assert.Equal(t, "step-search.mkv", entries[0].Name())
	assert.Zero(t, b.openSessions())
}

type fakeSlides struct {
	jobs []SlideJob
}

func (f *fakeSlides) Render(ctx context.Context, job SlideJob) error {
	f.jobs = append(f.jobs, job)
	return os.WriteFile(job.Output, []byte("slides"), 0o600)
}

func TestCapture_SlidesDispatchToRenderer(t *testing.T) {
	clock := executor.NewStepClock(time.Unix(0, 0))
	b := &fakeBrowser{clock: clock}
	steps := []tour.Step{{ID: "deck", Kind: tour.KindSlides, Slides: &tour.SlideRange{Range: [2]int{1, 2}}}}
	plan := newPlan(t, tour.ModeIndependent, steps, 11*time.Second)
	plan.Spec.Slides = &tour.SlideSource{Dir: "/slides"}

	slides := &fakeSlides{}
	m := newManager(b)
	m.Slides = slides

	res, err := m.Capture(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, slides.jobs, 1)
	assert.Equal(t, 11*time.Second, slides.jobs[0].Duration)
	assert.Equal(t, ClipSlides, res.Clips[0].Kind)
	assert.Empty(t, b.sessions)
}
