package model

import "time"

// ParticipantID uniquely identifies a user across the system
type ParticipantID string

// DefaultRating is assigned to participants with no recorded history
const DefaultRating = 1200

// ParticipantMetadata is the display data shown to an opponent
type ParticipantMetadata struct {
	DisplayName string
	Rating      int
	Wins        int
	Losses      int
	Draws       int
}

// PlaceholderMetadata is used when persistence has no record for a participant
func PlaceholderMetadata(id ParticipantID) ParticipantMetadata {
	short := string(id)
	if len(short) > 8 {
		short = short[:8]
	}
	return ParticipantMetadata{
		DisplayName: "Player-" + short,
		Rating:      DefaultRating,
	}
}

// QueueEntry is a participant waiting to be paired
type QueueEntry struct {
	Participant ParticipantID
	EnqueuedAt  time.Time
}
