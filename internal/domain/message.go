package domain

import "encoding/json"

// ChatMessage is the live copy of a private message exactly as the message
// store produced it (usually with populated sender and receiver documents).
// The relay passes every field through and only stamps createdAt.
type ChatMessage map[string]json.RawMessage

// Field names the relay itself reads or writes on a chat message.
const (
	FieldRecipientID = "recipientId"
	FieldCreatedAt   = "createdAt"
)
