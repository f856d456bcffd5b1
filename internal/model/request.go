package model

// GenerationRequest asks the backend to register a batch of accounts.
type GenerationRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Geolocation string `json:"geolocation"`
	FullAddress string `json:"fullAddress"`
	Count       int    `json:"count"`
	IsGmail     bool   `json:"isGmail"`
}

// CreditRefreshRequest asks the backend to refresh credit for every account,
// or for the accounts starting at StartEmail when it is set.
type CreditRefreshRequest struct {
	StartEmail string `json:"start_email,omitempty"`
}

// SessionRequest opens a browser session for one account.
type SessionRequest struct {
	Email string `json:"email"`
}

// Acceptance is the backend's answer to a job submission.
type Acceptance struct {
	Message  string
	Reasons  []string
	Accepted bool
}
