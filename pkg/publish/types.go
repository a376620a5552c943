package publish

import (
	"time"

	"socialcast/entities"
)

// Request is one finished video ready for distribution.
type Request struct {
	WorkflowID string
	Brand      entities.Brand
	Profile    string // broker-side account-set id
	Caption    string
	MediaURL   string
	Title      string
	Platforms  []entities.Platform
	ScheduleAt time.Time
}

// PlatformResult is the per-destination outcome.
type PlatformResult struct {
	Platform entities.Platform
	Success  bool
	PostID   string
	Detail   string
}

// Result aggregates one publish across all requested platforms. Success
// means at least one platform took the post; everything that went sideways
// on the way is a warning, not a failure.
type Result struct {
	PostID    string
	Platforms []PlatformResult
	Warnings  []string
}

// Succeeded reports whether at least one platform accepted the post.
func (r Result) Succeeded() bool {
	for _, p := range r.Platforms {
		if p.Success {
			return true
		}
	}
	return false
}
