package model

import "strings"

// Tracking says whether a record must be created in the external system or
// updated in place. It is resolved once per record by Classify.
type Tracking interface {
	Kind() string
	isTracking()
}

// New marks a record with no external counterpart yet.
type New struct{}

// AlreadyTracked marks a record that corresponds to an existing external issue.
type AlreadyTracked struct {
	SourceKey string
	SourceID  string
}

func (New) Kind() string { return "new" }
func (AlreadyTracked) Kind() string { return "already_tracked" }
func (New) isTracking() {}
func (AlreadyTracked) isTracking() {}

// Classify resolves the tracking variant of a record. A record is
// AlreadyTracked when it carries the id of an existing external issue.
func Classify(tc TestCase) Tracking {
	id := strings.TrimSpace(tc.ExternalID)
	if id == "" {
		return New{}
	}
	return AlreadyTracked{
		SourceKey: strings.TrimSpace(tc.ExternalKey),
		SourceID:  id,
	}
}
