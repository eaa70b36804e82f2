// Package models содержит доменные структуры трекера дел: дела, клиентов,
// платежи, организации и пользователей. Каждая запись хранится в документном
// хранилище как JSON и несёт общий конверт Envelope.
package models

import "time"

// Названия коллекций документного хранилища.
const (
	CollectionCases         = "cases"
	CollectionClients       = "clients"
	CollectionPayments      = "payments"
	CollectionOrganizations = "organizations"
	CollectionUsers         = "users"
)

// Envelope — общий конверт записи, принадлежащей пользователю.
//
// OrganizationID равен nil у «наследованных» записей, созданных до появления
// организаций. Однажды установленный, он не сбрасывается обычными изменениями.
type Envelope struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId" validate:"required"`
	OrganizationID *string   `json:"organizationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Meta возвращает указатель на конверт записи.
func (e *Envelope) Meta() *Envelope { return e }

// Legacy сообщает, что запись ещё не привязана к организации.
func (e *Envelope) Legacy() bool { return e.OrganizationID == nil }

// Record — запись с конвертом. Реализуется указателями на Case, Client и Payment.
type Record interface {
	Meta() *Envelope
}

// StringPtr возвращает указатель на копию строки.
func StringPtr(s string) *string { return &s }

// Deref возвращает значение строки или "" для nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
