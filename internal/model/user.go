// Package model defines the data structures used throughout the application.
package model

// PublicUserID owns system-provided rows. Anything created by this user is
// visible to every caller, anonymous ones included.
const PublicUserID int64 = 1

// User represents a registered account.
//
// HashedPassword never leaves the process; the json tag hides it.
type User struct {
	ID             int64     `json:"user_id"            db:"user_id"`
	Username       string    `json:"username"           db:"username"`
	Email          *string   `json:"email,omitempty"    db:"email"`
	Birthdate      string    `json:"birthdate"          db:"birthdate"` // YYYY-MM-DD
	Gender         string    `json:"gender"             db:"gender"`
	HashedPassword string    `json:"-"                  db:"hashed_password"`
	CreateTime     Timestamp `json:"create_time"        db:"create_time"`
}

// NewUser is the registration input before hashing.
type NewUser struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     *string `json:"email"`
	Birthdate string  `json:"birthdate"`
	Gender    string  `json:"gender"`
}

// Credentials is the subset of a user row the login flow needs.
type Credentials struct {
	UserID         int64  `db:"user_id"`
	HashedPassword string `db:"hashed_password"`
}
