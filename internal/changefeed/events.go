package changefeed

// Payloads carried by the streams. Each is a delta, never an absolute count:
// subscribers apply them on top of their own authoritative snapshot, so a
// stale in-flight event can never overwrite a later local fact.

// NotificationInserted: one unread notification created for the recipient.
// Routed by recipient.
type NotificationInserted struct {
	RecipientID    uint   `json:"recipient_id"`
	NotificationID uint   `json:"notification_id"`
	Type           string `json:"type"`
}

// NotificationsRead: Count previously-unread rows were marked read. Routed by
// recipient.
type NotificationsRead struct {
	RecipientID uint  `json:"recipient_id"`
	Count       int64 `json:"count"`
}

// IncidentAssigned: a new unseen acknowledgment slot for the recipient.
type IncidentAssigned struct {
	RecipientID uint `json:"recipient_id"`
	IncidentID  uint `json:"incident_id"`
}

// IncidentsSeen: Count previously-unseen slots were acknowledged.
type IncidentsSeen struct {
	RecipientID uint  `json:"recipient_id"`
	Count       int64 `json:"count"`
}

// MessageInserted: a message landed in a conversation. Routed by the member
// who did not send it.
type MessageInserted struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
	SenderID       uint `json:"sender_id"`
	RecipientID    uint `json:"recipient_id"`
}

// ConversationRead: the user's read watermark moved past every message
// committed before this event. Routed by the reading user, on the same stream
// as MessageInserted so the two stay in commit order.
type ConversationRead struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

// AvailabilityChanged: a member's durable status changed. Routed by
// institution.
type AvailabilityChanged struct {
	InstitutionID uint   `json:"institution_id"`
	UserID        uint   `json:"user_id"`
	Status        string `json:"status"`
}
