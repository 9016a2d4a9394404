package dispatch

import (
	"time"
)

// Request selects a stored result, a recipient location, and a
// language. Language is an explicit code, or empty for "use each
// recipient's preference".
type Request struct {
	ResultID string `json:"result_id"`
	Location string `json:"location_name"`
	Language string `json:"language,omitempty"`
}

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Skip/failure reasons with fixed spellings; operators match on these.
const (
	ReasonNoAdvice  = "no-advice-for-language"
	ReasonCancelled = "cancelled"
	ReasonTimeout   = "timeout"
)

// Entry is the outcome for a single recipient.
type Entry struct {
	Name     string `json:"name,omitempty"`
	Address  string `json:"address"`
	Language string `json:"language,omitempty"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Outcome renders the entry as "sent", "failed:<reason>" or
// "skipped:<reason>".
func (e Entry) Outcome() string {
	if e.Status == StatusSent || e.Reason == "" {
		return string(e.Status)
	}
	return string(e.Status) + ":" + e.Reason
}

// Report aggregates one dispatch call. It is transient: produced per
// call, returned to the operator, not persisted.
type Report struct {
	ID        string        `json:"id"`
	ResultID  string        `json:"result_id"`
	Location  string        `json:"location_name"`
	Language  string        `json:"language,omitempty"`
	Entries   []Entry       `json:"recipients"`
	Sent      int           `json:"sent_count"`
	Failed    int           `json:"failed_count"`
	Skipped   int           `json:"skipped_count"`
	StartedAt time.Time     `json:"started_at"`
	Took      time.Duration `json:"took"`
}

func (r *Report) tally() {
	r.Sent, r.Failed, r.Skipped = 0, 0, 0
	for _, e := range r.Entries {
		switch e.Status {
		case StatusSent:
			r.Sent++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}
