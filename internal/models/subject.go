package models

// SubjectKind tags an entity reference carried in events and audit records.
type SubjectKind string

const (
	SubjectConversation SubjectKind = "conversation"
	SubjectMessage      SubjectKind = "message"
	SubjectParticipant  SubjectKind = "participant"
)

// Subject is a tagged reference to an entity. Consumers resolve it through an
// explicit per-kind lookup rather than a runtime-typed backref.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   int         `json:"id"`
}
