package models

// Статусы судебного дела.
const (
	CaseStatusPending     = "pending"
	CaseStatusAdmitted    = "admitted"
	CaseStatusDismissed   = "dismissed"
	CaseStatusAllowed     = "allowed"
	CaseStatusDisposed    = "disposed"
	CaseStatusWithdrawn   = "withdrawn"
	CaseStatusCompromised = "compromised"
	CaseStatusStayed      = "stayed"
	CaseStatusAppealFiled = "appeal_filed"
)

// Case представляет судебное дело, которое ведёт практикующий юрист.
type Case struct {
	Envelope

	CaseNumber      string `json:"caseNumber" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Court           string `json:"court" validate:"required"`
	CaseType        string `json:"caseType"`
	Status          string `json:"status" validate:"required,oneof=pending admitted dismissed allowed disposed withdrawn compromised stayed appeal_filed"`
	ClientID        string `json:"clientId"`
	ClientName      string `json:"clientName"`
	OpposingParty   string `json:"opposingParty"`
	OpposingCounsel string `json:"opposingCounsel"`
	Judge           string `json:"judge"`
	FilingDate      string `json:"filingDate" validate:"omitempty,datetime=2006-01-02"`
	NextHearingDate string `json:"nextHearingDate" validate:"omitempty,datetime=2006-01-02"`
	Description     string `json:"description"`
	Urgent          bool   `json:"urgent"`
	Archived        bool   `json:"archived"`
}

// ClientRef возвращает идентификатор клиента, к которому относится дело.
func (c *Case) ClientRef() string { return c.ClientID }
