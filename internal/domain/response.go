package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResponseType classifies the sentiment of an inbound reply.
type ResponseType string

const (
	ResponsePositive ResponseType = "positive"
	ResponseNegative ResponseType = "negative"
	ResponseNeutral  ResponseType = "neutral"
)

// ParseResponseType validates a raw response type at the ingestion boundary.
func ParseResponseType(s string) (ResponseType, error) {
	switch ResponseType(strings.ToLower(strings.TrimSpace(s))) {
	case ResponsePositive:
		return ResponsePositive, nil
	case ResponseNegative:
		return ResponseNegative, nil
	case ResponseNeutral:
		return ResponseNeutral, nil
	default:
		return "", fmt.Errorf("unknown response type %q", s)
	}
}

// DetectionMethod records which path detected an inbound response.
type DetectionMethod string

const (
	DetectionManual    DetectionMethod = "manual"
	DetectionPolledAPI DetectionMethod = "polled_api"
	DetectionWebhook   DetectionMethod = "webhook"
)

// ResponseRecord is one detected inbound reply from a club.
type ResponseRecord struct {
	ResponseID   string          `json:"response_id" db:"response_id"`
	ClubName     string          `json:"club_name" db:"club_name"`
	ContactName  string          `json:"contact_name" db:"contact_name"`
	ContactEmail string          `json:"contact_email" db:"contact_email"`
	EmailType    EmailType       `json:"email_type" db:"email_type"`
	ResponseType ResponseType    `json:"response_type" db:"response_type"`
	Content      string          `json:"content" db:"content"`
	ResponseDate time.Time       `json:"response_date" db:"response_date"`
	Detection    DetectionMethod `json:"detection_method" db:"detection_method"`
	Processed    bool            `json:"processed" db:"processed"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// ResponseID derives the deterministic record ID for an automatically
// detected response. It is a function of the club and email type only, never
// of event content, so re-scanning an overlapping event window always maps a
// reply back to the same ID and the insert-if-absent store keeps detection
// idempotent. Manual entries append a sequence suffix (see ManualResponseID)
// because a human may intentionally log a second, distinct reply.
func ResponseID(clubName string, t EmailType) string {
	return fmt.Sprintf("%s:%s", ClubSlug(clubName), t)
}

// ManualResponseID derives the ID for the n-th manual response for a club
// and email type. n starts at 1; the first manual entry shares the automatic
// ID so the two detection paths deduplicate against each other.
func ManualResponseID(clubName string, t EmailType, n int) string {
	if n <= 1 {
		return ResponseID(clubName, t)
	}
	return fmt.Sprintf("%s#%d", ResponseID(clubName, t), n)
}

// ClubStatus is the derived per-club projection. It is computed from the
// most recent ResponseRecord and GeneratedEmail, never stored.
type ClubStatus string

const (
	StatusNotContacted      ClubStatus = "not_contacted"
	StatusAwaitingResponse  ClubStatus = "awaiting_response"
	StatusRespondedPositive ClubStatus = "responded_positive"
	StatusRespondedNegative ClubStatus = "responded_negative"
	StatusRespondedNeutral  ClubStatus = "responded_neutral"
)

// StatusForResponse maps a response sentiment to the projected club status.
func StatusForResponse(t ResponseType) ClubStatus {
	switch t {
	case ResponsePositive:
		return StatusRespondedPositive
	case ResponseNegative:
		return StatusRespondedNegative
	default:
		return StatusRespondedNeutral
	}
}

// Stage tracks where a club sits in the outreach pipeline. A positive reply
// advances the stage; a negative reply parks the club.
type Stage string

const (
	StageIntroduction      Stage = "introduction"
	StageCheckup           Stage = "checkup"
	StageAcceptance        Stage = "acceptance"
	StagePartnershipActive Stage = "partnership_active"
	StageNotInterested     Stage = "not_interested"
)

// NextStage returns the pipeline stage after a response to the given email
// type. Positive replies move the club forward; negative replies park it;
// neutral replies keep the current stage.
func NextStage(t EmailType, r ResponseType) Stage {
	if r == ResponseNegative {
		return StageNotInterested
	}
	if r != ResponsePositive {
		return Stage(t)
	}
	switch t {
	case EmailIntroduction:
		return StageCheckup
	case EmailCheckup:
		return StageAcceptance
	case EmailAcceptance:
		return StagePartnershipActive
	}
	return Stage(t)
}
