package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/contact-relay/pkg/config"
	"github.com/telekom/contact-relay/pkg/contact"
)

// ContactSubject is the subject of every relayed contact message.
const ContactSubject = "New Contact Message"

// Error wraps a transport failure. It matches ErrSendFailed via errors.Is and
// unwraps to the transport error.
type Error struct {
	Host string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mail: send via %s failed: %v", e.Host, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

// Dispatcher formats validated submissions into payloads and sends them once.
type Dispatcher struct {
	sender    Sender
	from      Address
	recipient string
	log       *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher sending from cfg.SenderAddress to cfg.Recipient.
// Both fall back to cfg.User.
func NewDispatcher(sender Sender, cfg config.Mail, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	from := cfg.SenderAddress
	if from == "" {
		from = cfg.User
	}
	recipient := cfg.Recipient
	if recipient == "" {
		recipient = cfg.User
	}
	name := cfg.SenderName
	if name == "" {
		name = "Portfolio"
	}

	return &Dispatcher{
		sender:    sender,
		from:      Address{Name: name, Address: from},
		recipient: recipient,
		log:       log.Named("dispatcher"),
	}
}

// BuildPayload renders the notification for s. Replies go to the submitter.
func (d *Dispatcher) BuildPayload(s contact.NormalizedSubmission) (Payload, error) {
	body, err := RenderContactMessage(ContactMailParams{
		Name:    s.Name,
		Email:   s.Email,
		Phone:   s.Phone,
		Message: s.Message,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("render contact message: %w", err)
	}

	return Payload{
		From:    d.from,
		To:      []string{d.recipient},
		ReplyTo: s.Email,
		Subject: ContactSubject,
		HTML:    body,
	}, nil
}

// Send hands p to the transport. Failures come back as *Error and are not retried.
func (d *Dispatcher) Send(ctx context.Context, p Payload) error {
	if err := d.sender.Send(ctx, p); err != nil {
		return &Error{Host: d.sender.GetHost(), Err: err}
	}
	d.log.Debugw("Contact message relayed", "recipient", d.recipient)
	return nil
}

// Verify checks SMTP connectivity.
func (d *Dispatcher) Verify(ctx context.Context) error {
	return d.sender.Verify(ctx)
}

// Sender returns the underlying transport.
func (d *Dispatcher) Sender() Sender {
	return d.sender
}
