package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/affirmgate/internal/alert"
	"github.com/ppiankov/affirmgate/internal/model"
)

// DefaultReplayWindow bounds how long a replay marker stays armed.
const DefaultReplayWindow = 100 * time.Millisecond

// DefaultAffirmParam is the query parameter appended to affirmed transfer URLs.
const DefaultAffirmParam = "affirm"

// Capture holds the structural selectors used by the DOM-capture interceptor.
// A change in the embedded application's markup is a compatibility break
// that only these values need to follow.
type Capture struct {
	Container   string `yaml:"container"`
	ControlText string `yaml:"control_text"`
}

// Config holds every prompt and tunable of the gate. It is loaded once at
// startup and never mutated afterwards.
type Config struct {
	Download     Prompt              `yaml:"download"`
	Upload       Prompt              `yaml:"upload"`
	AffirmParam  string              `yaml:"affirm_param"`
	ReplayWindow time.Duration       `yaml:"replay_window"`
	Capture      Capture             `yaml:"capture"`
	Alerts       []alert.AlertConfig `yaml:"alerts"`
}

const (
	downloadParagraph1 = "The All of Us Data Use Policies prohibit you from removing participant-level data from the workbench. You are also prohibited from publishing or otherwise distributing any data or aggregate statistics corresponding to fewer than 20 participants unless expressly permitted by our data use policies."
	downloadParagraph2 = `To continue, affirm that this download will be used in accordance with the All of Us data use policy by typing "affirm" below.`
	uploadParagraph    = "The All of Us Data Use Policies prohibit you from uploading data or files containing personally identifiable information (PII). Any external data, files, or software that is uploaded into the Workspace should be exclusively for the research purpose that was provided for this Workspace."
)

// DefaultConfig returns the built-in data use policy prompts.
func DefaultConfig() *Config {
	return &Config{
		Download: Prompt{
			Title:       "Policy Reminder",
			Body:        []string{downloadParagraph1, downloadParagraph2},
			Token:       "affirm",
			AffirmLabel: "Continue",
			CancelLabel: "Cancel",
			Placeholder: "Type 'affirm' to continue",
			Mismatch:    `You must type "affirm" to continue.`,
			CancelNotice: Notice{
				Title: "Download Cancelled",
				Body:  "You must affirm the All of Us Data Use Policies to download files.",
			},
		},
		Upload: Prompt{
			Title:       "Policy Reminder",
			Body:        []string{uploadParagraph},
			AffirmLabel: "Continue",
			CancelLabel: "Cancel",
			Refusal:     "You must affirm the All of Us Data Use Policies to upload files.",
		},
		AffirmParam:  DefaultAffirmParam,
		ReplayWindow: DefaultReplayWindow,
		Capture: Capture{
			Container:   "rstudio_modal_dialog",
			ControlText: "download",
		},
	}
}

// Prompt returns the prompt configured for kind.
func (c *Config) Prompt(kind model.ActionKind) (Prompt, error) {
	switch kind {
	case model.KindDownload:
		return c.Download, nil
	case model.KindUpload:
		return c.Upload, nil
	}
	return Prompt{}, fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

// Validate rejects configurations that would render an empty dialog.
func (c *Config) Validate() error {
	for _, kind := range model.Kinds {
		p, _ := c.Prompt(kind)
		if p.Title == "" {
			return fmt.Errorf("%s prompt: title must not be empty", kind)
		}
		if len(p.Body) == 0 {
			return fmt.Errorf("%s prompt: body must have at least one paragraph", kind)
		}
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("replay_window must be positive, got %s", c.ReplayWindow)
	}
	if c.AffirmParam == "" {
		return fmt.Errorf("affirm_param must not be empty")
	}
	return nil
}

// DefaultPath returns ~/.affirmgate/policy.yaml, or "" if home is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".affirmgate", "policy.yaml")
}

// LoadConfig loads policy configuration from a YAML file.
// Empty path falls back to ~/.affirmgate/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads policy configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read policy config: %w", err)
		}
		data = raw
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid policy config: %w", err)
	}

	return cfg, hash, nil
}

// DefaultConfigYAML returns a commented YAML string for init.
func DefaultConfigYAML() string {
	return `# affirmgate policy configuration
# Generated by: affirmgate init
#
# Each protected action kind has its own prompt. A prompt with a token
# requires the user to type it (case-insensitive, exact) before the
# affirm button enables. A prompt without a token is a plain warning.

download:
  title: "Policy Reminder"
  body:
    - "` + downloadParagraph1 + `"
    - "To continue, affirm that this download will be used in accordance with the All of Us data use policy by typing \"affirm\" below."
  token: affirm
  affirm_label: Continue
  cancel_label: Cancel
  placeholder: "Type 'affirm' to continue"
  mismatch_message: "You must type \"affirm\" to continue."
  cancel_notice:
    title: "Download Cancelled"
    body: "You must affirm the All of Us Data Use Policies to download files."

upload:
  title: "Policy Reminder"
  body:
    - "` + uploadParagraph + `"
  affirm_label: Continue
  cancel_label: Cancel
  refusal_message: "You must affirm the All of Us Data Use Policies to upload files."

# Query parameter appended to affirmed transfer URLs (value is always "true").
affirm_param: affirm

# How long a replayed control stays exempt from interception.
replay_window: 100ms

# Structural selectors for the DOM-capture interceptor.
capture:
  container: rstudio_modal_dialog
  control_text: download

# Webhooks notified on gate decisions.
# alerts:
#   - url: https://hooks.example.com/affirmgate
#     format: slack            # generic | slack
#     events: [affirmed]       # affirmed | cancelled | folded | superseded | error | *
`
}
