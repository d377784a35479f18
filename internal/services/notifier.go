package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"
)

// Notifier is the at-least-once fan-out channel for state-change events.
// Delivery is best effort: failures are logged and swallowed, never
// escalated to the mutation that triggered them.
type Notifier interface {
	// Broadcast publishes a payload on a topic channel, no ordering
	// guarantee across topics.
	Broadcast(topic string, payload map[string]any)

	// NotifyUsers delivers a message to each user's personal channel.
	NotifyUsers(userIDs []string, message map[string]any)
}

// ScrimTopic is the broadcast channel for one session's observers.
func ScrimTopic(sessionID string) string {
	return fmt.Sprintf("scrim-%s", sessionID)
}

// PubNubNotifier publishes over PubNub, one channel per topic and one
// channel per user.
type PubNubNotifier struct {
	pubnub *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pubnub: pn}
}

func (n *PubNubNotifier) Broadcast(topic string, payload map[string]any) {
	if n.pubnub == nil {
		return
	}
	_, _, err := n.pubnub.Publish().
		Channel(topic).
		Message(payload).
		Execute()
	if err != nil {
		slog.Error("broadcast failed", "topic", topic, "error", err)
	}
}

func (n *PubNubNotifier) NotifyUsers(userIDs []string, message map[string]any) {
	if n.pubnub == nil {
		return
	}
	for _, userID := range userIDs {
		channel := fmt.Sprintf("user-%s", userID)
		_, _, err := n.pubnub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			slog.Error("user notification failed", "user_id", userID, "error", err)
		}
	}
}
