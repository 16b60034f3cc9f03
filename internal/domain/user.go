package domain

import "time"

// User is an end user of the shopping assistant.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// Preference is a single key/value fact about a user. Key is unique per user.
type Preference struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// PreferenceUpdate is one requested upsert into a user's preferences.
type PreferenceUpdate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
