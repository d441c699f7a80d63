package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const smtpDialTimeout = 10 * time.Second

// SMTPSender delivers alerts as email. With ShortForm set the body is the
// single line rendering, which suits email-to-SMS gateways.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	to        []string
	startTLS  bool
	shortForm bool
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// SMTPOptions holds the relay settings for NewSMTPSender
type SMTPOptions struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	To        []string
	StartTLS  bool
	ShortForm bool
}

// NewSMTPSender creates an email channel
func NewSMTPSender(opts SMTPOptions, logger *zap.Logger) (*SMTPSender, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if opts.From == "" || len(opts.To) == 0 {
		return nil, errors.New("smtp from and to are required")
	}
	port := opts.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:      opts.Host,
		port:      port,
		username:  opts.Username,
		password:  opts.Password,
		from:      opts.From,
		to:        opts.To,
		startTLS:  opts.StartTLS,
		shortForm: opts.ShortForm,
		tlsConfig: &tls.Config{ServerName: opts.Host},
		logger:    logger,
	}, nil
}

// Name returns the channel name
func (s *SMTPSender) Name() string { return "smtp" }

// Send relays the alert and returns the generated Message-ID
func (s *SMTPSender) Send(ctx context.Context, alert Alert) (string, error) {
	msgID, data, err := s.compose(alert)
	if err != nil {
		return "", err
	}
	if err := s.deliver(ctx, data); err != nil {
		return "", err
	}
	return msgID, nil
}

func (s *SMTPSender) compose(alert Alert) (string, []byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: s.from}})
	to := make([]*mail.Address, 0, len(s.to))
	for _, addr := range s.to {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	body := alert.Plain()
	if s.shortForm {
		h.SetSubject("Important email")
		body = alert.Short()
	} else {
		h.SetSubject("Important email: " + alert.Subject)
	}
	if err := h.GenerateMessageID(); err != nil {
		return "", nil, fmt.Errorf("failed to generate Message-ID: %w", err)
	}
	msgID, err := h.MessageID()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read Message-ID: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		w.Close()
		return "", nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return msgID, buf.Bytes(), nil
}

func (s *SMTPSender) deliver(ctx context.Context, data []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if s.startTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("relay does not support STARTTLS")
		}
		if err := c.StartTLS(s.tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if s.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(s.from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, rcpt := range s.to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}
