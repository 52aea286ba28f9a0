package types

import "time"

const (
	// MessageIDKey is the config key holding the id of the status message.
	MessageIDKey = "MESSAGE_ID"
	// PeakMessageIDKey is the config key holding the id of the peak message.
	PeakMessageIDKey = "PEAK_MESSAGE_ID"
)

// MessageHandle identifies a message posted to the notification channel.
// An empty ID means the message has not been created yet.
type MessageHandle struct {
	ID         string `json:"id,omitempty"`
	ChannelRef string `json:"channelRef"`
}

// Published reports whether the handle refers to an existing remote message.
func (h MessageHandle) Published() bool {
	return h.ID != ""
}

// PeakRecord is the highest solar generation seen, along with when it was
// seen and the message that displays it.
type PeakRecord struct {
	Watts     int           `json:"watts"`
	Timestamp time.Time     `json:"timestamp"`
	Message   MessageHandle `json:"message"`
}

// AlertState holds whether each battery alert is eligible to fire.
type AlertState struct {
	HighArmed bool `json:"highArmed"`
	LowArmed  bool `json:"lowArmed"`
}
