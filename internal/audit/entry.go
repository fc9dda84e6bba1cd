package audit

// AuditEntry is one line in the hash-chained JSONL audit log. It records
// a single gate decision. Fields are fixed so json.Marshal output, and so
// the chain hash, is reproducible.
type AuditEntry struct {
	Timestamp  string `json:"ts"`
	Surface    string `json:"surface"`
	Kind       string `json:"kind"`
	Decision   string `json:"decision"`
	Target     string `json:"target,omitempty"`
	PolicyHash string `json:"policy_hash"`
	PrevHash   string `json:"prev_hash"`
}
