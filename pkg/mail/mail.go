package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/contact-relay/pkg/config"
	"github.com/telekom/contact-relay/pkg/metrics"
	"github.com/telekom/contact-relay/pkg/telemetry"
)

// DefaultSendTimeout bounds one SMTP session when the configuration leaves it unset.
const DefaultSendTimeout = 10 * time.Second

var (
	// ErrSendFailed matches every error returned by Dispatcher.Send.
	ErrSendFailed = errors.New("mail: send failed")
	// ErrTimeout is returned when the SMTP session does not finish within the send timeout.
	ErrTimeout = errors.New("mail: smtp session timed out")
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string
	Address string
}

// Payload is one message ready for transport.
type Payload struct {
	From    Address
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, p Payload) error
	Verify(ctx context.Context) error
	GetHost() string
	GetPort() int
}

type sender struct {
	// dialer only carries the connection settings; sessions are opened by converse
	dialer  *gomail.Dialer
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewSender builds an SMTP sender on gomail. Port 465 uses implicit TLS, other ports
// upgrade with STARTTLS when the server offers it.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("mail")
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.User)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for test relays
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	return &sender{
		dialer:  d,
		timeout: timeout,
		log:     log,
	}
}

func buildMessage(p Payload) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", p.From.Address, p.From.Name)
	msg.SetHeader("To", p.To...)
	if p.ReplyTo != "" {
		msg.SetHeader("Reply-To", p.ReplyTo)
	}
	msg.SetHeader("Subject", p.Subject)
	msg.SetBody("text/html", p.HTML)
	return msg
}

// Send delivers p in one SMTP session bounded by the send timeout and ctx.
func (s *sender) Send(ctx context.Context, p Payload) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "smtp.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("smtp.host", s.GetHost()),
			attribute.Int("smtp.port", s.GetPort()),
			attribute.Int("mail.receivers", len(p.To)),
		))
	defer func() { telemetry.EndSpan(span, err) }()

	s.log.Debugw("Preparing to send mail", "receivers", len(p.To), "subject", p.Subject)
	msg := buildMessage(p)

	start := time.Now()
	err = s.session(ctx, func(sc gomail.SendCloser) error {
		return gomail.Send(sc, msg)
	})
	metrics.MailSendDuration.WithLabelValues(s.GetHost()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
		return err
	}

	s.log.Infow("Mail sent successfully", "receivers", len(p.To))
	metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
	return nil
}

// Verify opens and closes an authenticated SMTP session.
func (s *sender) Verify(ctx context.Context) error {
	err := s.session(ctx, func(gomail.SendCloser) error { return nil })
	if err != nil {
		metrics.MailVerifyFailure.WithLabelValues(s.GetHost()).Inc()
		return fmt.Errorf("verify smtp %s:%d: %w", s.GetHost(), s.GetPort(), err)
	}
	return nil
}

// session runs fn on a fresh authenticated connection. The connection carries a
// deadline for the whole session and is closed as soon as ctx is done, so a stalled
// server never outlives the call.
func (s *sender) session(ctx context.Context, fn func(gomail.SendCloser) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.converse(ctx, fn)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	}
	return err
}

func (s *sender) converse(ctx context.Context, fn func(gomail.SendCloser) error) error {
	addr := net.JoinHostPort(s.dialer.Host, strconv.Itoa(s.dialer.Port))
	raw, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		if err := raw.SetDeadline(deadline); err != nil {
			_ = raw.Close()
			return err
		}
	}

	conn := raw
	if s.dialer.SSL {
		conn = tls.Client(conn, s.tlsConfig())
	}
	c, err := smtp.NewClient(conn, s.dialer.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if s.dialer.LocalName != "" {
		if err := c.Hello(s.dialer.LocalName); err != nil {
			return err
		}
	}
	if !s.dialer.SSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig()); err != nil {
				return err
			}
		}
	}
	if s.dialer.Username != "" {
		if ok, mechs := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth(mechs)); err != nil {
				return err
			}
		}
	}

	sc := &sendCloser{c: c}
	if err := fn(sc); err != nil {
		return err
	}
	return sc.Close()
}

func (s *sender) tlsConfig() *tls.Config {
	if s.dialer.TLSConfig != nil {
		return s.dialer.TLSConfig
	}
	return &tls.Config{ServerName: s.dialer.Host, MinVersion: tls.VersionTLS12}
}

// auth picks a mechanism the way gomail does: CRAM-MD5 first, LOGIN only when
// PLAIN is not offered.
func (s *sender) auth(mechs string) smtp.Auth {
	switch {
	case strings.Contains(mechs, "CRAM-MD5"):
		return smtp.CRAMMD5Auth(s.dialer.Username, s.dialer.Password)
	case strings.Contains(mechs, "LOGIN") && !strings.Contains(mechs, "PLAIN"):
		return &loginAuth{username: s.dialer.Username, password: s.dialer.Password, host: s.dialer.Host}
	default:
		return smtp.PlainAuth("", s.dialer.Username, s.dialer.Password, s.dialer.Host)
	}
}

// sendCloser adapts an smtp.Client to gomail.SendCloser.
type sendCloser struct {
	c *smtp.Client
}

func (sc *sendCloser) Send(from string, to []string, msg io.WriterTo) error {
	if err := sc.c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := sc.c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := sc.c.Data()
	if err != nil {
		return err
	}
	if _, err := msg.WriteTo(w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (sc *sendCloser) Close() error {
	return sc.c.Quit()
}

type loginAuth struct {
	username, password, host string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && server.Name != "localhost" && server.Name != "127.0.0.1" {
		return "", nil, errors.New("mail: unencrypted connection")
	}
	if server.Name != a.host {
		return "", nil, errors.New("mail: wrong host name")
	}
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch {
	case bytes.EqualFold(fromServer, []byte("Username:")):
		return []byte(a.username), nil
	case bytes.EqualFold(fromServer, []byte("Password:")):
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("mail: unexpected server challenge %q", fromServer)
	}
}

func (s *sender) GetHost() string {
	return s.dialer.Host
}

func (s *sender) GetPort() int {
	return s.dialer.Port
}
