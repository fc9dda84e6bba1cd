// Package dialog renders affirmation prompts. It knows nothing about
// downloads or uploads: it shows a policy.Prompt, validates what the user
// types, and resolves once with an accept or cancel outcome.
package dialog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// Modal is one open dialog. All methods are safe for concurrent use; the
// first of Affirm, Cancel, or Dismiss to succeed resolves it, later calls
// are ignored.
type Modal struct {
	id     string
	prompt policy.Prompt

	mu       sync.Mutex
	input    string
	errMsg   string
	resolved bool
	outcome  model.Outcome
	changed  chan struct{}

	done    chan struct{}
	onClose func(*Modal)
}

func newModal(p policy.Prompt, onClose func(*Modal)) *Modal {
	return &Modal{
		id:      uuid.NewString(),
		prompt:  p,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// ID uniquely identifies the modal for presenters that publish it.
func (m *Modal) ID() string { return m.id }

// Prompt returns the text the modal renders.
func (m *Modal) Prompt() policy.Prompt { return m.prompt }

// Input returns the current confirmation text.
func (m *Modal) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// SetInput replaces the confirmation text and clears any inline error.
func (m *Modal) SetInput(s string) {
	m.mu.Lock()
	if m.resolved {
		m.mu.Unlock()
		return
	}
	m.input = s
	m.errMsg = ""
	m.notifyLocked()
	m.mu.Unlock()
}

// AffirmEnabled reports whether the affirm control is enabled. Without a
// required token it is enabled from the start.
func (m *Modal) AffirmEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.resolved && m.prompt.Matches(m.input)
}

// ValidationError returns the inline error shown under the input, if any.
func (m *Modal) ValidationError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Affirm attempts to accept the dialog. If the current input does not match
// the token the dialog stays open with an inline validation error.
func (m *Modal) Affirm() bool {
	m.mu.Lock()
	if m.resolved {
		m.mu.Unlock()
		return false
	}
	if !m.prompt.Matches(m.input) {
		m.errMsg = m.prompt.Mismatch
		if m.errMsg == "" {
			m.errMsg = "confirmation text does not match"
		}
		m.notifyLocked()
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()
	return m.resolve(true)
}

// Click activates the affirm control the way a pointer would: a disabled
// control ignores it.
func (m *Modal) Click() bool {
	if !m.AffirmEnabled() {
		return false
	}
	return m.Affirm()
}

// Enter is the Enter key in the input; it affirms only while enabled.
func (m *Modal) Enter() bool {
	return m.Click()
}

// Cancel resolves the dialog as declined.
func (m *Modal) Cancel() bool { return m.resolve(false) }

// Dismiss is a click outside the dialog surface; it declines.
func (m *Modal) Dismiss() bool { return m.resolve(false) }

// Done is closed once the modal has resolved and been torn down.
func (m *Modal) Done() <-chan struct{} { return m.done }

// Closed reports whether the modal has resolved.
func (m *Modal) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Outcome returns the resolution. It is meaningful only after Done.
func (m *Modal) Outcome() model.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Changed returns a channel closed at the next state change (input,
// validation error, or resolution). Presenters re-read state after it fires.
func (m *Modal) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Wait blocks until the modal resolves. If ctx ends first the modal is
// dismissed and ctx.Err() returned.
func (m *Modal) Wait(ctx context.Context) (model.Outcome, error) {
	select {
	case <-m.done:
		return m.Outcome(), nil
	case <-ctx.Done():
		m.Dismiss()
		<-m.done
		return model.Outcome{}, ctx.Err()
	}
}

func (m *Modal) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// resolve tears the modal down before signalling Done so that nobody
// observing Done can still find it on the surface.
func (m *Modal) resolve(affirmed bool) bool {
	m.mu.Lock()
	if m.resolved {
		m.mu.Unlock()
		return false
	}
	m.resolved = true
	m.outcome = model.Outcome{Affirmed: affirmed}
	m.notifyLocked()
	m.mu.Unlock()

	if m.onClose != nil {
		m.onClose(m)
	}
	close(m.done)
	return true
}
