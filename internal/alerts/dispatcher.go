// Package alerts fans one crisis mention out to the owner's configured
// channels. Channels fail independently: one broken webhook never
// blocks the email, and failures are reported rather than retried
// within the cycle.
package alerts

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/models"
)

// Report records the outcome of one dispatch across channels.
type Report struct {
	MentionID string
	Channels  map[string]error // attempted channel name -> nil or failure
}

// Attempted is the number of channels tried.
func (r *Report) Attempted() int { return len(r.Channels) }

// Failed is the number of channels that errored.
func (r *Report) Failed() int {
	failed := 0
	for _, err := range r.Channels {
		if err != nil {
			failed++
		}
	}
	return failed
}

// Succeeded reports whether at least one channel delivered.
func (r *Report) Succeeded() bool {
	return r.Attempted() > r.Failed()
}

// Dispatcher routes alerts to channels by name.
type Dispatcher struct {
	channels map[string]Channel
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &Dispatcher{channels: byName}
}

// Dispatch attempts every channel the config enables, independently.
// Per-channel failures are logged and recorded in the report; the
// caller decides what the aggregate outcome means for alert state.
func (d *Dispatcher) Dispatch(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) *Report {
	report := &Report{
		MentionID: mention.ID,
		Channels:  make(map[string]error),
	}

	for _, name := range cfg.EnabledChannels() {
		channel, ok := d.channels[name]
		if !ok {
			logrus.Warnf("Channel %s enabled for user %s but not configured on this instance", name, cfg.UserID)
			continue
		}

		err := channel.Send(ctx, mention, cfg)
		report.Channels[name] = err
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"mention_id": mention.ID,
				"channel":    name,
			}).Errorf("Alert delivery failed: %v", err)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"mention_id": mention.ID,
			"channel":    name,
		}).Info("Alert delivered")
	}

	return report
}
