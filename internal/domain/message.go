package domain

import "time"

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageSticker     MessageType = "sticker"
	MessageEvent       MessageType = "event"
	MessagePrivateDate MessageType = "private_date"
	MessageIcebreaker  MessageType = "icebreaker"
)

// PrivateDate is the structured payload of a private_date message.
type PrivateDate struct {
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Message is immutable once stored except for readBy growth and the
// one-time translation write.
type Message struct {
	ID       string      `json:"id"`
	SenderID string      `json:"sender_id"`
	Type     MessageType `json:"type"`

	Text        string       `json:"text,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	StickerURL  string       `json:"sticker_url,omitempty"`
	PrivateDate *PrivateDate `json:"private_date,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	ReadBy    []string  `json:"read_by"`

	TranslatedText string `json:"translated_text,omitempty"`
	IsTranslating  bool   `json:"is_translating,omitempty"`
}

func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkReadBy adds userID to the readBy set; returns false if it was
// already present.
func (m *Message) MarkReadBy(userID string) bool {
	if m.ReadByUser(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// ValidatePayload enforces that exactly the payload field matching the
// message type is set.
func (m *Message) ValidatePayload() error {
	var want string
	set := map[string]bool{
		"text":         m.Text != "",
		"image_url":    m.ImageURL != "",
		"sticker_url":  m.StickerURL != "",
		"private_date": m.PrivateDate != nil,
	}

	switch m.Type {
	case MessageText, MessageEvent, MessageIcebreaker:
		want = "text"
	case MessageImage:
		want = "image_url"
	case MessageSticker:
		want = "sticker_url"
	case MessagePrivateDate:
		want = "private_date"
	default:
		return ErrInvalidMessagePayload
	}

	for field, populated := range set {
		if field == want && !populated {
			return ErrInvalidMessagePayload
		}
		if field != want && populated {
			return ErrInvalidMessagePayload
		}
	}
	return nil
}
