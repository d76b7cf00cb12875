package model

// Credentials are what the user types into the login and register forms.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the body of a successful POST /api/login.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
