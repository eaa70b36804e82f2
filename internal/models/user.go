// Package models содержит доменную модель пользователя системы.
package models

import "time"

// Роли пользователя.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User — профиль пользователя. Учётные данные хранит внешний провайдер аутентификации.
//
// OrganizationID — слабая ссылка: пользователь не владеет организацией,
// а лишь указывает, к какой из них относится.
type User struct {
	ID             string    `json:"id" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Name           string    `json:"name"`
	Role           string    `json:"role" validate:"omitempty,oneof=admin member"`
	OrganizationID *string   `json:"organizationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
