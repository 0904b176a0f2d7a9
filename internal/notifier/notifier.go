package notifier

import (
	"context"
	"errors"

	"github.com/gdg-garage/garage-workshops/internal/metrics"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"go.uber.org/zap"
)

type EventKind string

const (
	ApplicationSubmitted EventKind = "application_submitted"
	ApplicationApproved  EventKind = "application_approved"
	ApplicationRejected  EventKind = "application_rejected"
	WorkshopPublished    EventKind = "workshop_published"
	WorkshopCancelled    EventKind = "workshop_cancelled"
)

// Event describes something a master or student may want to hear about.
// Application and Student are nil for workshop events.
type Event struct {
	Kind        EventKind
	Workshop    models.Workshop
	Master      *models.User
	Application *models.Application
	Student     *models.User
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

type named struct {
	channel string
	n       Notifier
}

// Multi fans an event out to every configured channel. A failing channel
// does not stop the others.
type Multi struct {
	targets []named
	log     *zap.Logger
}

func NewMulti(log *zap.Logger) *Multi {
	return &Multi{log: log}
}

// Add registers n under channel; nil notifiers are ignored.
func (m *Multi) Add(channel string, n Notifier) *Multi {
	if n != nil {
		m.targets = append(m.targets, named{channel: channel, n: n})
	}
	return m
}

func (m *Multi) Len() int {
	return len(m.targets)
}

func (m *Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.n.Notify(ctx, event); err != nil {
			metrics.NotificationFailedAmount.WithLabelValues(t.channel).Inc()
			m.log.Warn("notification failed",
				zap.String("channel", t.channel),
				zap.String("event", string(event.Kind)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
