package models

// DateLayout — формат дат документов (ISO-8601, только дата).
const DateLayout = "2006-01-02"

// Payment — платёж клиента. Всегда ссылается ровно на одного клиента.
type Payment struct {
	Envelope

	ClientID  string  `json:"clientId" validate:"required"`
	CaseID    string  `json:"caseId"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Method    string  `json:"method" validate:"omitempty,oneof=cash cheque bank_transfer upi card other"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
	Refunded  bool    `json:"refunded"`
}

// ClientRef возвращает идентификатор клиента платежа.
func (p *Payment) ClientRef() string { return p.ClientID }
