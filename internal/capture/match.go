package capture

import "github.com/ppiankov/affirmgate/internal/policy"

// Matcher decides which event targets are protected controls.
type Matcher struct {
	Container   string
	ControlText string
}

// NewMatcher builds a matcher from policy capture settings.
func NewMatcher(c policy.Capture) Matcher {
	return Matcher{Container: c.Container, ControlText: c.ControlText}
}

func (m Matcher) within(el *Element) bool {
	return el.Closest(func(e *Element) bool { return e.HasClass(m.Container) }) != nil
}

// DownloadControl reports whether a click on target is a download: the
// target sits in a button inside the container and its text content,
// descendants included, mentions the control text.
func (m Matcher) DownloadControl(target *Element) bool {
	if target == nil {
		return false
	}
	btn := target.Closest(func(e *Element) bool { return e.Tag == "button" })
	if btn == nil {
		return false
	}
	return textContains(target.TextContent(), m.ControlText) && m.within(btn)
}

// UploadInput reports whether target is a file input inside the container.
func (m Matcher) UploadInput(target *Element) bool {
	if target == nil {
		return false
	}
	return target.Tag == "input" && target.Type == "file" && m.within(target)
}
