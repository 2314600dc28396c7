package models

// Admin credentials forwarded to backend login endpoint
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
