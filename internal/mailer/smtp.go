package mailer

import (
	"context"
	"errors"
	"net"
	"net/mail"
	"net/textproto"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers reminder emails over SMTP. Each Send is bounded
// by Timeout so a hung connection cannot hold a claimed job past the
// recovery window.
type SMTPSender struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

func NewSMTPSender(host string, port int, username, password, from string, timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPSender{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		timeout: timeout,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return &SendError{Category: CategoryFatal, Err: errors.New("invalid recipient address")}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return &SendError{Category: classifySMTP(err), Err: err}
		}
		return nil
	case <-ctx.Done():
		return &SendError{Category: CategoryTransient, Err: ctx.Err()}
	}
}

// classifySMTP maps a raw SMTP/network error to a retry category.
// 4xx replies are transient per RFC 5321; 5xx are permanent.
func classifySMTP(err error) Category {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 500 {
			return CategoryFatal
		}
		return CategoryTransient
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return CategoryTransient
	}

	return CategoryTransient
}
