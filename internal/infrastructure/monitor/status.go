package monitor

import "time"

type Component struct {
	Online bool   `json:"online"`
	Error  string `json:"error,omitempty"`
}

type OutboxStatus struct {
	Online bool `json:"online"`
	Size   int  `json:"size"`
}

type Status struct {
	Components map[string]Component `json:"components"`
	Outbox     *OutboxStatus        `json:"outbox,omitempty"`
	LastCheck  time.Time            `json:"last_check"`
}

// Healthy is false until the first check has run.
func (s Status) Healthy() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	for _, c := range s.Components {
		if !c.Online {
			return false
		}
	}
	return s.Outbox == nil || s.Outbox.Online
}

func (s Status) clone() Status {
	out := s
	out.Components = make(map[string]Component, len(s.Components))
	for k, v := range s.Components {
		out.Components[k] = v
	}
	if s.Outbox != nil {
		o := *s.Outbox
		out.Outbox = &o
	}
	return out
}
