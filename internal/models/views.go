package models

// OrderView is the authoritative read projection of a SharedOrder: the
// cached amount and participant count are replaced by values summed from
// participant rows.
type OrderView struct {
	SharedOrder
	Creator           string `json:"creator"`
	CreatorEmail      string `json:"creator_email,omitempty"`
	CreatorPhone      string `json:"creator_phone,omitempty"`
	ParticipantCount  int    `json:"participant_count"`
	TimeUntilDeadline *int64 `json:"time_until_deadline_ms,omitempty"`
	IsOrderingClosed  bool   `json:"is_ordering_closed"`
}

type ParticipantDetails struct {
	Participant
	User      string      `json:"user"`
	UserEmail string      `json:"user_email,omitempty"`
	UserPhone string      `json:"user_phone,omitempty"`
	Items     []OrderItem `json:"items"`
}

type OrderDetails struct {
	OrderView
	Participants []ParticipantDetails `json:"participants"`
}

type MyOrder struct {
	Participant
	Order   *OrderView `json:"shared_order"`
	Creator string     `json:"creator"`
}
