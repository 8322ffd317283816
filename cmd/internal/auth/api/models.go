package authapi

import "time"

type registerRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
	DeviceID string  `json:"device_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID        string    `json:"session_id"`
	DeviceID         string    `json:"device_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RefreshCount     int       `json:"refresh_count"`
}

type loginResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type validateResponse struct {
	User      userResponse `json:"user"`
	DeviceID  string       `json:"device_id"`
	SessionID string       `json:"session_id"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type sessionInfo struct {
	SessionID        string     `json:"session_id"`
	DeviceID         string     `json:"device_id"`
	Current          bool       `json:"current"`
	CreatedAt        time.Time  `json:"created_at"`
	LastRefreshAt    time.Time  `json:"last_refresh_at"`
	LastCheckAt      *time.Time `json:"last_check_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
	RefreshCount     int        `json:"refresh_count"`
	UserAgent        *string    `json:"user_agent"`
	IP               *string    `json:"ip"`
}

type sessionsResponse struct {
	Sessions []sessionInfo `json:"sessions"`
}
