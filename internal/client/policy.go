package client

import (
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

// Policy describes how a notification of one priority tier is presented.
// AutoDismiss is zero for sticky presentations.
type Policy struct {
	AutoDismiss time.Duration
	Sticky      bool
	Audible     bool
}

var policies = map[models.Priority]Policy{
	models.PriorityCritical: {Sticky: true, Audible: true},
	models.PriorityHigh:     {AutoDismiss: 8 * time.Second, Audible: true},
	models.PriorityNormal:   {AutoDismiss: 5 * time.Second},
	models.PriorityLow:      {AutoDismiss: 3 * time.Second},
}

// PolicyFor returns the presentation policy for priority. Unknown tiers are
// presented as NORMAL.
func PolicyFor(priority models.Priority) Policy {
	return policies[tier(priority)]
}
