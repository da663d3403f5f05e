package types

import "time"

// CoordinationReason describes which signal linked the members of a group.
type CoordinationReason string

const (
	ReasonText      CoordinationReason = "text"
	ReasonMedia     CoordinationReason = "media"
	ReasonTextMedia CoordinationReason = "text+media"
)

// CoordinationGroup flags incidents that look like coordinated reposting
// rather than independent reports. Groups are advisory and recomputed per run.
type CoordinationGroup struct {
	ID                    string             `json:"id"`
	ContentClusterID      string             `json:"content_cluster_id"`
	MemberIncidentIDs     []string           `json:"member_incident_ids"`
	DistinctReporterCount int                `json:"distinct_reporter_count"`
	TimeSpread            time.Duration      `json:"time_spread"`
	SuspicionScore        float64            `json:"suspicion_score"`
	FirstSeen             time.Time          `json:"first_seen"`
	LastSeen              time.Time          `json:"last_seen"`
	Reason                CoordinationReason `json:"reason"`
}

// Size returns the number of member incidents.
func (g CoordinationGroup) Size() int {
	return len(g.MemberIncidentIDs)
}
