package models

import "time"

// Тарифные планы организации.
const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Статусы подписки организации.
const (
	StatusActive    = "active"
	StatusTrial     = "trial"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Organization — арендатор (tenant) с подпиской и квотами.
//
// MaxUsers и MaxCases выводятся из тарифа; -1 означает отсутствие ограничения.
type Organization struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name" validate:"required"`
	Email                 string     `json:"email" validate:"omitempty,email"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	SubscriptionPlan      string     `json:"subscriptionPlan" validate:"required,oneof=free starter professional enterprise"`
	SubscriptionStatus    string     `json:"subscriptionStatus" validate:"required,oneof=active trial expired cancelled"`
	MaxUsers              int        `json:"maxUsers"`
	MaxCases              int        `json:"maxCases"`
	CurrentUsers          int        `json:"currentUsers"`
	CurrentCases          int        `json:"currentCases"`
	TrialEndDate          *time.Time `json:"trialEndDate,omitempty"`
	SubscriptionStartDate *time.Time `json:"subscriptionStartDate,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscriptionEndDate,omitempty"`
	CreatedBy             string     `json:"createdBy"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// CreateOrganizationRequest — тело запроса на создание организации.
type CreateOrganizationRequest struct {
	UserID           string `json:"userId" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	SubscriptionPlan string `json:"subscriptionPlan" validate:"omitempty,oneof=free starter professional enterprise"`
}

// SubscriptionChange — запрос на смену тарифа. Status задаётся явно только администратором.
type SubscriptionChange struct {
	SubscriptionPlan   string  `json:"subscriptionPlan" validate:"required,oneof=free starter professional enterprise"`
	SubscriptionStatus *string `json:"subscriptionStatus,omitempty" validate:"omitempty,oneof=active trial expired cancelled"`
}

// AddMemberRequest — запрос на добавление пользователя в организацию.
type AddMemberRequest struct {
	UserID   string `json:"userId" validate:"required"`
	MemberID string `json:"memberId" validate:"required"`
}

// MigrateRequest — запрос на перенос наследованных дел пользователя в организацию.
type MigrateRequest struct {
	UserID         string `json:"userId" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
}

// MigrationResult — итог переноса дел.
type MigrationResult struct {
	Message  string `json:"message"`
	Migrated int    `json:"migrated"`
	// Partial выставляется, когда перенос зафиксирован, а счётчик организации обновить не удалось.
	Partial bool `json:"partial,omitempty"`
}
