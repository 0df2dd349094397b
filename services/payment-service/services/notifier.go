package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// EventPublisher announces confirmed records to other services.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, ev models.RecordEvent) error
}

// SNSEventPublisher publishes record events to an SNS topic.
type SNSEventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(sns awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishRecordEvent(ctx context.Context, ev models.RecordEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.sns.Publish(ctx, p.topicArn, payload, map[string]string{
		"event_type":   ev.Type,
		"payment_type": ev.PaymentType,
	})
}

// NoopEventPublisher drops events.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishRecordEvent(context.Context, models.RecordEvent) error { return nil }

// Notifier renders and sends customer and admin emails.
type Notifier struct {
	email      sender.EmailSender
	templates  *sender.Templates
	adminEmail string
	events     EventPublisher
	now        func() time.Time
}

func NewNotifier(email sender.EmailSender, templates *sender.Templates, adminEmail string, events EventPublisher) *Notifier {
	if events == nil {
		events = NoopEventPublisher{}
	}
	return &Notifier{email: email, templates: templates, adminEmail: adminEmail, events: events, now: time.Now}
}

// Send renders kind with data and mails it to to.
func (n *Notifier) Send(ctx context.Context, to, kind string, data map[string]any) error {
	if to == "" {
		return fmt.Errorf("no recipient for %s email", kind)
	}
	subject, body, err := n.templates.Render(kind, data)
	if err != nil {
		return err
	}
	_, err = n.email.SendEmail(ctx, to, subject, body)
	return err
}

// NotifyAdmin emails the studio and publishes a record_confirmed event. Both
// are attempted; the errors are joined.
func (n *Notifier) NotifyAdmin(ctx context.Context, ev models.PaymentEvent, customer, note string) error {
	var errs []error
	if n.adminEmail != "" {
		err := n.Send(ctx, n.adminEmail, sender.TplAdminPayment, map[string]any{
			"PaymentType": string(ev.PaymentType),
			"NaturalKey":  ev.NaturalKey,
			"Customer":    customer,
			"Amount":      ev.AmountMinor,
			"Currency":    ev.Currency,
			"Reference":   ev.Reference,
			"Note":        note,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("admin email: %w", err))
		}
	}
	err := n.events.PublishRecordEvent(ctx, models.RecordEvent{
		Type:        "record_confirmed",
		PaymentType: string(ev.PaymentType),
		NaturalKey:  ev.NaturalKey,
		Reference:   ev.Reference,
		Amount:      ev.AmountMinor,
		Currency:    ev.Currency,
		Timestamp:   n.now().UTC(),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("publish event: %w", err))
	}
	return errors.Join(errs...)
}
