package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack"
	Events  []string          `yaml:"events"  json:"events"` // ["affirmed", "cancelled", "folded"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints for one gate decision.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Surface    string `json:"surface"`
	Kind       string `json:"kind"`
	Decision   string `json:"decision"`
	Target     string `json:"target,omitempty"`
	PolicyHash string `json:"policy_hash,omitempty"`
}
