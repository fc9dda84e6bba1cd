package capture

import (
	"strings"
	"sync"
)

// Element is a node in the document tree. Its fields belong to the loop
// goroutine.
type Element struct {
	Tag      string
	Type     string
	Text     string
	Classes  []string
	Parent   *Element
	Children []*Element
	Files    []string
	Disabled bool
}

// NewElement creates an element and appends it to parent's children.
func NewElement(tag string, parent *Element, classes ...string) *Element {
	e := &Element{Tag: tag, Parent: parent, Classes: classes}
	if parent != nil {
		parent.Children = append(parent.Children, e)
	}
	return e
}

// TextContent returns the text of e and all its descendants in document
// order.
func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*Element)
	walk = func(n *Element) {
		b.WriteString(n.Text)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return b.String()
}

// HasClass reports whether e carries class c.
func (e *Element) HasClass(c string) bool {
	for _, have := range e.Classes {
		if have == c {
			return true
		}
	}
	return false
}

// Closest returns e or its nearest ancestor satisfying pred.
func (e *Element) Closest(pred func(*Element) bool) *Element {
	for n := e; n != nil; n = n.Parent {
		if pred(n) {
			return n
		}
	}
	return nil
}

// ClearFiles empties a file input's selection.
func (e *Element) ClearFiles() { e.Files = nil }

// Event is a dispatched DOM event.
type Event struct {
	Type      string
	Target    *Element
	Synthetic bool

	stopped   bool
	prevented bool
}

// StopPropagation prevents later listeners from seeing the event.
func (e *Event) StopPropagation() { e.stopped = true }

// PreventDefault suppresses the target's default action.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Listener handles an event.
type Listener func(ev *Event)

type listener struct {
	id      int
	typ     string
	capture bool
	fn      Listener
}

// Document dispatches events to document-level listeners and runs element
// default actions.
type Document struct {
	loop *Loop

	mu        sync.Mutex
	listeners []listener
	nextID    int
	actions   map[*Element]func(*Event)
}

// NewDocument creates a document driven by loop.
func NewDocument(loop *Loop) *Document {
	return &Document{loop: loop, actions: make(map[*Element]func(*Event))}
}

// Loop returns the document's event loop.
func (d *Document) Loop() *Loop { return d.loop }

// AddEventListener registers fn for events of typ. Capture listeners run
// before bubble listeners. The returned func removes the listener.
func (d *Document) AddEventListener(typ string, fn Listener, capture bool) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, typ: typ, capture: capture, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetDefaultAction sets what a click on el, or on any descendant of el,
// does when no listener prevents it.
func (d *Document) SetDefaultAction(el *Element, fn func(*Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[el] = fn
}

// Dispatch delivers ev. It must run on the loop.
func (d *Document) Dispatch(ev *Event) {
	if ev.Target == nil {
		return
	}
	if ev.Type == "click" && ev.Target.Closest(func(e *Element) bool { return e.Disabled }) != nil {
		return
	}

	d.mu.Lock()
	ls := make([]listener, 0, len(d.listeners))
	for _, phase := range []bool{true, false} {
		for _, l := range d.listeners {
			if l.typ == ev.Type && l.capture == phase {
				ls = append(ls, l)
			}
		}
	}
	d.mu.Unlock()

	for _, l := range ls {
		if ev.stopped {
			break
		}
		l.fn(ev)
	}

	if ev.prevented || ev.Type != "click" {
		return
	}
	if action := d.actionFor(ev.Target); action != nil {
		action(ev)
	}
}

func (d *Document) actionFor(el *Element) func(*Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n := el; n != nil; n = n.Parent {
		if fn, ok := d.actions[n]; ok {
			return fn
		}
	}
	return nil
}

// Click posts a user click on el.
func (d *Document) Click(el *Element) bool {
	return d.loop.Post(func() { d.Dispatch(&Event{Type: "click", Target: el}) })
}

// SelectFiles posts a user file selection on a file input.
func (d *Document) SelectFiles(el *Element, files ...string) bool {
	return d.loop.Post(func() {
		el.Files = files
		d.Dispatch(&Event{Type: "change", Target: el})
	})
}

func textContains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
