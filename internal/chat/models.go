package chat

// Conversation is the single shared thread between two users within a
// tour. UserA/UserB are stored in pair-key order.
type Conversation struct {
	ID      string `json:"id,omitempty"`
	UserA   string `json:"user_a"`
	UserB   string `json:"user_b"`
	PairKey string `json:"pair_key"`
}

type Message struct {
	ID        string `json:"id,omitempty"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	FromName  string `json:"from_name"`
	ToName    string `json:"to_name"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type SendRequest struct {
	TourID string `json:"tour_id"`
	Text   string `json:"text"`
}
