package notify

import "context"

// Sender delivers one rendered payload somewhere. Webhook is the only
// implementation today; the interface exists so additional notifiers
// (e.g. a future Slack or PagerDuty sender) can be added to the Notifier's
// fan-out list without touching its retry/backoff machinery.
type Sender interface {
	Notify(ctx context.Context, payload map[string]interface{}) error
}
