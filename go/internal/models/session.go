package models

// Session is the token issued by the user endpoint. The service calls it user_id.
type Session struct {
	UserID string `json:"user_id"`
}

// ConnectionStatus is the body returned by the session test endpoint
type ConnectionStatus struct {
	Status string `json:"status"`
}
