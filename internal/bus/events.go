// Package bus defines the domain event schemas, the publish/subscribe
// contracts and the Kafka transport adapter.
package bus

import "time"

// Inbound event type tags.
const (
	TypeRecommendationSubmitted = "VacancyRecommendationSubmitted"
	TypeSecurityCheckCreated    = "ApplicantSecurityCheckCreated"
	TypeSecurityCheckFilled     = "ApplicantSecurityCheckFilled"
	TypeSecurityCheckFailed     = "ApplicantSecurityCheckFailed"
	TypeSecurityCheckFinished   = "ApplicantSecurityCheckFinished"
)

// Outbound event type tags.
const (
	TypeSecurityCheckPrepared = "ApplicantSecurityCheckPrepared"
	TypeRejected              = "ApplicantRejected"
	TypeSelfRejected          = "ApplicantSelfRejected"
	TypeSBRejected            = "ApplicantSBRejected"
	TypeAlreadyRecommended    = "ApplicantAlreadyRecommended"
)

// Inviter identifies the referring employee on a recommendation.
type Inviter struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// RecommendationSubmitted is published when an employee recommends a
// candidate for the referral vacancy.
type RecommendationSubmitted struct {
	ID             int64    `json:"id"`
	Inviter        Inviter  `json:"inviter"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Phone          string   `json:"phone"`
	City           string   `json:"city"`
	About          string   `json:"about"`
	Circle         string   `json:"circle"`
	Specialization string   `json:"specialization"`
	IsNotified     bool     `json:"is_notified"`
	Files          []string `json:"files"`
}

type SecurityCheckCreated struct {
	ID            int64     `json:"id"`
	ArmsID        string    `json:"arms_id"`
	ArmsURL       string    `json:"arms_url"`
	ArmsCreatedAt time.Time `json:"arms_created_at"`
}

type SecurityCheckFilled struct {
	ID int64 `json:"id"`
}

type SecurityCheckFailed struct {
	ID           int64  `json:"id"`
	ArmsID       string `json:"arms_id"`
	CandidateURL string `json:"candidate_url"`
}

type SecurityCheckFinished struct {
	ID     int64  `json:"id"`
	ArmsID string `json:"arms_id"`
	Status string `json:"status"`
}

// ApplicantEvent is the payload shape shared by all outbound events: just
// the internal case id.
type ApplicantEvent struct {
	ID int64 `json:"id"`
}
