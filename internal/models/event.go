package models

import "time"

// Ключи маршрутизации доменных событий.
const (
	EventCaseCreated         = "case.created"
	EventCaseDeleted         = "case.deleted"
	EventClientDeleted       = "client.deleted"
	EventCasesMigrated       = "cases.migrated"
	EventOrganizationCreated = "organization.created"
	EventSubscriptionChanged = "organization.subscription_changed"
	EventMemberAdded         = "organization.member_added"
	EventTrialExpired        = "organization.trial_expired"
)

// Event — сообщение, публикуемое в брокер после успешной мутации.
type Event struct {
	Type           string    `json:"type"`
	UserID         string    `json:"userId,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	RecordID       string    `json:"recordId,omitempty"`
	Count          int       `json:"count,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}
