package importbatch

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUndone     Status = "undone"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusUndone},
	StatusFailed:     {StatusUndone},
}

// CanTransition reports whether from -> to is one of the legal, monotonic moves.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Finished reports whether the counts of a batch in this status are final.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sources lists the statuses that may move to s.
func Sources(to Status) []Status {
	var out []Status
	for from, targets := range transitions {
		for _, t := range targets {
			if t == to {
				out = append(out, from)
			}
		}
	}
	return out
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusUndone:
		return true
	}
	return false
}

type Format string

const (
	FormatCSV    Format = "csv"
	FormatLedger Format = "ledger"
)

func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatLedger
}
