package models

// Owned is implemented by records that belong to a single user.
type Owned interface {
	OwnerID() string
}

// Participated is implemented by records shared between several users.
type Participated interface {
	ParticipantIDs() []string
}
