package domain

import "time"

// User is a subscriber as the subscription flow stores it. This service only
// reads users; creation and preference changes happen upstream.
type User struct {
	ID              string
	PhoneNumber     string
	Subscribed      bool
	PreferredTime   string // wall clock "HH:MM:SS", interpreted in Timezone
	Timezone        string // IANA name, e.g. "America/New_York"
	LastInteraction time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
