package models

// Client представляет клиента практики. Удаление клиента каскадно удаляет его платежи.
type Client struct {
	Envelope

	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Company  string `json:"company"`
	Notes    string `json:"notes"`
	Inactive bool   `json:"inactive"`
}
