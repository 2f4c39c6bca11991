// Package model defines domain entities for the application.
package model

import "time"

// User is a persisted account. Credential is the opaque envelope produced
// by auth.HashPassword; it changes on every password rotation and is never
// serialized.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserRequest is the body for account creation and credential rotation.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthToken carries a freshly issued external bearer token. The token is
// reconstructible from (secret, username, credential); nothing else is
// stored server side.
type AuthToken struct {
	Token string `json:"token"`
}
