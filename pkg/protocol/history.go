package protocol

// HistoryRecord is one element of the /history response array. Only Sender
// and Content are needed to display it.
type HistoryRecord struct {
	ID        string `json:"id,omitempty"`
	Kind      Kind   `json:"type,omitempty"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient,omitempty"`
	Room      string `json:"room,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Delivered bool   `json:"delivered,omitempty"`
}
