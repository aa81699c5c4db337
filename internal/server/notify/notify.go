// Package notify delivers outcome notifications to users.
package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/bily-amin/habitica/internal/logging"
	"github.com/bily-amin/habitica/internal/netx"
)

// Channel is the delivery medium of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// KindWonChallenge is sent to a challenge winner.
const KindWonChallenge = "won_challenge"

type Notification struct {
	Kind          string  `json:"kind"`
	Channel       Channel `json:"channel"`
	UserID        string  `json:"user_id"`
	ChallengeID   string  `json:"challenge_id"`
	ChallengeName string  `json:"challenge_name"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only records notifications in the log.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("module", "notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.log.Info(ctx, "notification", "kind", n.Kind, "channel", n.Channel,
		"user_id", n.UserID, "challenge_id", n.ChallengeID)
	return nil
}

// WebhookNotifier POSTs every notification as JSON to a fixed URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	return netx.PostJSON(ctx, w.client, w.url, n)
}
