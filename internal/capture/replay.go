package capture

import "time"

// ReplayController re-dispatches affirmed clicks. A replayed element is
// armed for a short window so the interceptor lets the replay through; a
// later real click after the window is gated again.
type ReplayController struct {
	doc    *Document
	window time.Duration

	// Owned by the loop.
	gen   uint64
	armed map[*Element]uint64
}

// NewReplayController creates a controller that keeps elements armed for
// window.
func NewReplayController(doc *Document, window time.Duration) *ReplayController {
	return &ReplayController{doc: doc, window: window, armed: make(map[*Element]uint64)}
}

// Replay arms el and posts one synthetic click on it. It must run on the
// loop.
func (r *ReplayController) Replay(el *Element) {
	r.gen++
	gen := r.gen
	r.armed[el] = gen

	loop := r.doc.Loop()
	loop.Post(func() {
		r.doc.Dispatch(&Event{Type: "click", Target: el, Synthetic: true})
	})
	loop.After(r.window, func() {
		if r.armed[el] == gen {
			delete(r.armed, el)
		}
	})
}

// Armed reports whether el currently carries the replay marker. It must
// run on the loop.
func (r *ReplayController) Armed(el *Element) bool {
	_, ok := r.armed[el]
	return ok
}
