package model

import "time"

// LoginSession binds an issued bearer token to a user until Expiry. Only the
// token's id is stored; the signed token itself is handed to the client.
type LoginSession struct {
	TokenID string    `db:"token_id"`
	UserID  int64     `db:"user_id"`
	Expiry  Timestamp `db:"expiry"`
}

// LoginResult is what a successful login returns to the client.
type LoginResult struct {
	UserID     int64     `json:"user_id"`
	LoginToken string    `json:"login_token"`
	Expiry     Timestamp `json:"expiry"`
}

// Expired reports whether the session is unusable at now. A session whose
// expiry equals now is already expired.
func (s LoginSession) Expired(now time.Time) bool {
	return !now.Before(s.Expiry.Time)
}

// SessionDrink is one entry of a drinking session.
type SessionDrink struct {
	ID        int64         `json:"id"`
	Drink     DrinkOverview `json:"drink"`
	Quantity  int64         `json:"quantity"`
	StartTime Timestamp     `json:"start_time"`
	EndTime   NullTimestamp `json:"end_time"`
}

// DrinkingSession is a user's session with its ordered drink entries.
type DrinkingSession struct {
	ID            int64          `json:"id"`
	CreatedUserID int64          `json:"created_user_id"`
	CreateTime    Timestamp      `json:"create_time"`
	Drinks        []SessionDrink `json:"drinks"`
}

// SessionOverview is the aggregated listing row for a drinking session.
type SessionOverview struct {
	ID              int64         `json:"id"               db:"session_id"`
	CreatedUserID   int64         `json:"created_user_id"  db:"created_user_id"`
	CreateTime      Timestamp     `json:"create_time"      db:"create_time"`
	NDrinks         int64         `json:"n_drinks"         db:"n_drinks"`
	NStandards      float64       `json:"n_standards"      db:"n_standards"`
	SugarG          float64       `json:"sugar_g"          db:"sugar_g"`
	StartTime       NullTimestamp `json:"start_time"       db:"start_time"`
	EndTime         NullTimestamp `json:"end_time"         db:"end_time"`
	DurationMinutes float64       `json:"duration_minutes" db:"duration_minutes"`
}

// NewSessionDrink is the input for adding a drink to a session.
type NewSessionDrink struct {
	DrinkID   int64         `json:"drink_id"`
	Quantity  *int64        `json:"quantity"`
	StartTime *Timestamp    `json:"start_time"`
	EndTime   NullTimestamp `json:"end_time"`
}
