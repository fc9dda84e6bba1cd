package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/affirmgate/internal/dialog"
	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

const waitFor = 2 * time.Second

type fixture struct {
	loop     *Loop
	doc      *Document
	surface  *dialog.Surface
	gate     *gate.Gate
	ic       *Interceptor
	presents atomic.Int32

	container *Element
	button    *Element
	input     *Element
	downloads atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, policy.DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *policy.Config) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{loop: NewLoop()}
	go f.loop.Run(ctx)

	f.doc = NewDocument(f.loop)
	f.surface = dialog.NewSurface(dialog.PresenterFunc(func(context.Context, *dialog.Modal) {
		f.presents.Add(1)
	}))
	f.gate = gate.New(cfg, f.surface)
	f.ic = Attach(ctx, f.doc, f.gate)

	f.container = NewElement("div", nil, "rstudio_modal_dialog")
	f.button = NewElement("button", f.container)
	f.button.Text = "Download"
	f.input = NewElement("input", f.container)
	f.input.Type = "file"
	f.doc.SetDefaultAction(f.button, func(*Event) { f.downloads.Add(1) })
	return f
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.True(t, f.loop.Do(func() {}))
}

func (f *fixture) armed(t *testing.T, el *Element) bool {
	t.Helper()
	var armed bool
	require.True(t, f.loop.Do(func() { armed = f.ic.Replayer().Armed(el) }))
	return armed
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	var files []string
	require.True(t, f.loop.Do(func() { files = append(files, f.input.Files...) }))
	return files
}

func (f *fixture) openModal(t *testing.T) *dialog.Modal {
	t.Helper()
	require.Eventually(t, func() bool { return f.surface.Current() != nil }, waitFor, time.Millisecond)
	return f.surface.Current()
}

func TestRapidClicksOpenOneDialogAndReplayOnce(t *testing.T) {
	f := newFixture(t)

	f.doc.Click(f.button)
	f.doc.Click(f.button)
	f.sync(t)

	m := f.openModal(t)
	assert.Equal(t, 1, f.surface.OpenCount())
	assert.Equal(t, model.StateDialogOpen, f.gate.State())
	assert.Zero(t, f.downloads.Load(), "download must wait for affirmation")

	m.SetInput("affirm")
	require.True(t, m.Affirm())

	require.Eventually(t, func() bool { return f.downloads.Load() == 1 }, waitFor, time.Millisecond)
	time.Sleep(2 * policy.DefaultReplayWindow)
	f.sync(t)
	assert.EqualValues(t, 1, f.downloads.Load())
	assert.EqualValues(t, 1, f.presents.Load())
}

func TestMarkerClearsAndNextClickIsGated(t *testing.T) {
	f := newFixture(t)

	f.doc.Click(f.button)
	m := f.openModal(t)
	m.SetInput("AFFIRM")
	m.Affirm()
	require.Eventually(t, func() bool { return f.downloads.Load() == 1 }, waitFor, time.Millisecond)

	require.Eventually(t, func() bool { return !f.armed(t, f.button) }, 5*policy.DefaultReplayWindow, 5*time.Millisecond)

	f.doc.Click(f.button)
	f.sync(t)
	m2 := f.openModal(t)
	assert.NotEqual(t, m.ID(), m2.ID())
	assert.EqualValues(t, 1, f.downloads.Load(), "a later click must go through the gate again")
	m2.Cancel()
}

func TestCancelledDownloadDoesNothing(t *testing.T) {
	f := newFixture(t)

	f.doc.Click(f.button)
	f.openModal(t).Cancel()

	require.Eventually(t, func() bool { return f.gate.State() == model.StateIdle }, waitFor, time.Millisecond)
	time.Sleep(2 * policy.DefaultReplayWindow)
	f.sync(t)
	assert.Zero(t, f.downloads.Load())
	assert.False(t, f.armed(t, f.button))
}

func TestClickOnIconInsideButton(t *testing.T) {
	f := newFixture(t)
	icon := NewElement("span", f.button)
	icon.Text = "download"

	f.doc.Click(icon)
	m := f.openModal(t)
	m.SetInput("affirm")
	m.Affirm()

	require.Eventually(t, func() bool { return f.downloads.Load() == 1 }, waitFor, time.Millisecond)
}

func TestClickOnButtonWithLabelInChild(t *testing.T) {
	f := newFixture(t)
	btn := NewElement("button", f.container)
	NewElement("i", btn, "fa-download")
	label := NewElement("span", btn)
	label.Text = "Download"
	f.doc.SetDefaultAction(btn, func(*Event) { f.downloads.Add(1) })

	f.doc.Click(btn)
	m := f.openModal(t)
	f.sync(t)
	assert.Zero(t, f.downloads.Load(), "click held until affirmed")

	m.SetInput("affirm")
	require.True(t, m.Affirm())
	require.Eventually(t, func() bool { return f.downloads.Load() == 1 }, waitFor, time.Millisecond)
}

func TestTextContentIncludesDescendants(t *testing.T) {
	root := NewElement("button", nil)
	root.Text = "Save "
	NewElement("span", root).Text = "and download"
	assert.Equal(t, "Save and download", root.TextContent())
}

func TestUnprotectedClicksPassThrough(t *testing.T) {
	f := newFixture(t)

	outside := NewElement("button", nil)
	outside.Text = "Download"
	var outsideRuns atomic.Int32
	f.doc.SetDefaultAction(outside, func(*Event) { outsideRuns.Add(1) })

	other := NewElement("button", f.container)
	other.Text = "Close"
	var otherRuns atomic.Int32
	f.doc.SetDefaultAction(other, func(*Event) { otherRuns.Add(1) })

	f.doc.Click(outside)
	f.doc.Click(other)
	f.sync(t)

	assert.EqualValues(t, 1, outsideRuns.Load())
	assert.EqualValues(t, 1, otherRuns.Load())
	assert.Nil(t, f.surface.Current())
}

func TestUploadCancelClearsSelection(t *testing.T) {
	f := newFixture(t)

	f.doc.SelectFiles(f.input, "cohort.csv")
	f.openModal(t).Cancel()

	require.Eventually(t, func() bool { return len(f.files(t)) == 0 }, waitFor, time.Millisecond)
}

func TestUploadAffirmKeepsSelection(t *testing.T) {
	f := newFixture(t)

	f.doc.SelectFiles(f.input, "cohort.csv", "notes.txt")
	m := f.openModal(t)
	require.True(t, m.Affirm())

	require.Eventually(t, func() bool { return f.gate.State() == model.StateIdle }, waitFor, time.Millisecond)
	f.sync(t)
	assert.Equal(t, []string{"cohort.csv", "notes.txt"}, f.files(t))
}

func (f *fixture) filesOf(t *testing.T, el *Element) []string {
	t.Helper()
	var files []string
	require.True(t, f.loop.Do(func() { files = append(files, el.Files...) }))
	return files
}

func tokenUploadConfig() *policy.Config {
	cfg := policy.DefaultConfig()
	cfg.Upload.Token = "affirm"
	return cfg
}

func TestSecondUploadClearedWhenSharedDialogCancelled(t *testing.T) {
	f := newFixtureWithConfig(t, tokenUploadConfig())
	second := NewElement("input", f.container)
	second.Type = "file"

	f.doc.SelectFiles(f.input, "a.csv")
	m := f.openModal(t)
	f.doc.SelectFiles(second, "b.csv")
	f.sync(t)

	assert.Same(t, m, f.surface.Current(), "second selection folds into the open dialog")
	assert.False(t, m.Closed(), "fold press cannot affirm without the token")
	m.Cancel()

	require.Eventually(t, func() bool {
		return len(f.filesOf(t, f.input)) == 0 && len(f.filesOf(t, second)) == 0
	}, waitFor, time.Millisecond)
}

func TestSecondUploadKeptWhenSharedDialogAffirmed(t *testing.T) {
	f := newFixtureWithConfig(t, tokenUploadConfig())
	second := NewElement("input", f.container)
	second.Type = "file"

	f.doc.SelectFiles(f.input, "a.csv")
	m := f.openModal(t)
	f.doc.SelectFiles(second, "b.csv")
	f.sync(t)

	m.SetInput("AFFIRM")
	require.True(t, m.Affirm())

	require.Eventually(t, func() bool { return f.gate.State() == model.StateIdle }, waitFor, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	f.sync(t)
	assert.Equal(t, []string{"a.csv"}, f.filesOf(t, f.input))
	assert.Equal(t, []string{"b.csv"}, f.filesOf(t, second))
}

func TestEmptySelectionIgnored(t *testing.T) {
	f := newFixture(t)

	f.doc.SelectFiles(f.input)
	f.sync(t)
	assert.Nil(t, f.surface.Current())
}

func TestUploadSupersedesDownload(t *testing.T) {
	f := newFixture(t)

	f.doc.Click(f.button)
	down := f.openModal(t)

	f.doc.SelectFiles(f.input, "a.csv")
	f.sync(t)
	require.Eventually(t, down.Closed, waitFor, time.Millisecond)

	up := f.surface.Current()
	require.NotNil(t, up)
	assert.NotEqual(t, down.ID(), up.ID())
	up.Affirm()

	time.Sleep(2 * policy.DefaultReplayWindow)
	f.sync(t)
	assert.Zero(t, f.downloads.Load(), "superseded download must not replay")
	assert.Equal(t, []string{"a.csv"}, f.files(t))
}

func TestDetach(t *testing.T) {
	f := newFixture(t)
	f.ic.Detach()

	f.doc.Click(f.button)
	f.sync(t)
	assert.EqualValues(t, 1, f.downloads.Load())
	assert.Nil(t, f.surface.Current())
}

func TestDisabledButtonIgnoresClicks(t *testing.T) {
	f := newFixture(t)
	f.button.Disabled = true

	f.doc.Click(f.button)
	f.sync(t)
	assert.Nil(t, f.surface.Current())
	assert.Zero(t, f.downloads.Load())
}
