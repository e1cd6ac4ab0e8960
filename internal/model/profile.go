package model

import "time"

// Profile stores the reward state of a task owner.
type Profile struct {
	Username string
	// Credential is an opaque comparison blob; it is never plaintext.
	Credential    []byte
	Coins         int
	Streak        int
	LastCompleted *time.Time
}

// CategoryStats summarises tasks sharing one category label.
type CategoryStats struct {
	Name string
	Open int
	Done int
}
