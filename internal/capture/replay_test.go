package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.True(t, l.Do(func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopPostFromLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() { l.Post(func() { close(done) }) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestLoopStop(t *testing.T) {
	l := NewLoop()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	l.Stop()
	require.NoError(t, <-errCh)
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Do(func() {}))
}

func TestReplayDispatchesSyntheticClick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)
	doc := NewDocument(l)
	rc := NewReplayController(doc, 50*time.Millisecond)

	btn := NewElement("button", nil)
	synthetic := make(chan bool, 1)
	doc.SetDefaultAction(btn, func(ev *Event) { synthetic <- ev.Synthetic })

	var armed bool
	l.Do(func() {
		rc.Replay(btn)
		armed = rc.Armed(btn)
	})
	assert.True(t, armed)
	assert.True(t, <-synthetic)

	require.Eventually(t, func() bool {
		l.Do(func() { armed = rc.Armed(btn) })
		return !armed
	}, time.Second, 5*time.Millisecond)
}

func TestStaleTimerDoesNotClearNewerArming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)
	doc := NewDocument(l)
	rc := NewReplayController(doc, 200*time.Millisecond)
	btn := NewElement("button", nil)

	l.Do(func() { rc.Replay(btn) })
	time.Sleep(100 * time.Millisecond)
	l.Do(func() { rc.Replay(btn) })
	time.Sleep(130 * time.Millisecond)

	var armed bool
	l.Do(func() { armed = rc.Armed(btn) })
	assert.True(t, armed, "first window expired but the second arming is still live")
}

func TestMatcher(t *testing.T) {
	m := Matcher{Container: "rstudio_modal_dialog", ControlText: "download"}
	dlg := NewElement("div", nil, "panel", "rstudio_modal_dialog")
	btn := NewElement("button", dlg)
	btn.Text = "Download File"
	plain := NewElement("div", dlg)
	plain.Text = "download"
	file := NewElement("input", dlg)
	file.Type = "file"
	text := NewElement("input", dlg)
	text.Type = "text"
	loose := NewElement("input", nil)
	loose.Type = "file"

	assert.True(t, m.DownloadControl(btn))
	assert.False(t, m.DownloadControl(plain), "not a button")
	assert.True(t, m.UploadInput(file))
	assert.False(t, m.UploadInput(text))
	assert.False(t, m.UploadInput(loose))
	assert.False(t, m.DownloadControl(nil))
}
