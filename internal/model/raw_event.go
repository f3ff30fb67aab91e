package model

import "time"

// ResolutionStatus is the state of a raw event in the ingestion audit trail.
// pending is the only non-terminal state; transitions are one-way.
type ResolutionStatus string

// Resolution statuses.
const (
	ResolutionPending ResolutionStatus = "pending"
	ResolutionLinked  ResolutionStatus = "linked"
	ResolutionIgnored ResolutionStatus = "ignored"
	ResolutionFailed  ResolutionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s ResolutionStatus) Terminal() bool {
	return s == ResolutionLinked || s == ResolutionIgnored || s == ResolutionFailed
}

// RawEvent records that a message was ingested, independent of whether it
// produced a ledger row. It carries the recorded classification so the
// coverage and replay auditors can recompute expectations without re-reading
// the message store.
type RawEvent struct {
	ReceivedAt       time.Time
	CreatedAt        time.Time
	ExternalID       string
	Sender           string
	BodyPreview      string
	Intent           Intent
	PatternName      string
	Currency         string
	ResolutionStatus ResolutionStatus
	ResolvedAt       *time.Time
	Amount           *float64
	ID               int64
	Confidence       float64
	Matched          bool
	Excluded         bool

	// ShouldCreateTransaction records, at ingestion time, whether this event
	// was expected to post a ledger row (financial classification AND a
	// postable account). The resolver and auditors key off this flag.
	ShouldCreateTransaction bool
}
