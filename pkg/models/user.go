package models

// User is the backend profile record. The token endpoint does not return the
// profile, so it is resolved separately after login.
type User struct {
	ID           string `json:"id,omitempty"`
	Version      int    `json:"version,omitempty"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	Role         string `json:"role,omitempty"`
	Birthdate    string `json:"dob,omitempty"`
	IDCardNumber string `json:"idCardNumber,omitempty"`
	Image        string `json:"image,omitempty"`
}

// UserPage is the page envelope for /user/find.
type UserPage struct {
	Content       []User `json:"content"`
	TotalElements int    `json:"totalElements"`
}

// TokenResponse is the OAuth2 token endpoint payload for both the password
// and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}
