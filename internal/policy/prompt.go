package policy

import "strings"

// Notice is an informational message shown after a cancelled action.
type Notice struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Empty reports whether the notice carries no text.
func (n Notice) Empty() bool {
	return n.Title == "" && n.Body == ""
}

// Prompt is the policy configuration for one action kind: what the dialog
// says and what the user must type to proceed.
type Prompt struct {
	Title       string   `yaml:"title"`
	Body        []string `yaml:"body"`
	Token       string   `yaml:"token"`
	AffirmLabel string   `yaml:"affirm_label"`
	CancelLabel string   `yaml:"cancel_label"`
	Placeholder string   `yaml:"placeholder"`
	Mismatch    string   `yaml:"mismatch_message"`

	// CancelNotice is shown after the user declines. Empty means silent.
	CancelNotice Notice `yaml:"cancel_notice"`

	// Refusal is the error message guarded uploads return on cancel.
	Refusal string `yaml:"refusal_message"`
}

// RequiresToken reports whether the user must type a confirmation token.
// A prompt without a token is a plain accept/cancel warning.
func (p Prompt) RequiresToken() bool {
	return p.Token != ""
}

// Matches reports whether input satisfies the prompt's token. Comparison is
// case-insensitive and exact: surrounding whitespace is not trimmed.
func (p Prompt) Matches(input string) bool {
	if !p.RequiresToken() {
		return true
	}
	return strings.ToLower(input) == strings.ToLower(p.Token)
}
