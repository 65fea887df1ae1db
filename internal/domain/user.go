// Package domain holds the persisted entities and read models of the raffle.
package domain

import "time"

// User is a Telegram user who has contacted the bot. Users are upserted on every
// contact and never deleted.
type User struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the best human readable handle for the user.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return "Anonymous"
	}
}
