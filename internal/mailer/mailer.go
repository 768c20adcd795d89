package mailer

import (
	"context"
	"errors"
	"fmt"
)

// Category tells the dispatcher whether retrying the same delivery can
// ever succeed.
type Category string

const (
	// CategoryTransient covers rate limiting, timeouts and server-side
	// channel errors. Retrying later is expected to succeed.
	CategoryTransient Category = "transient"
	// CategoryFatal covers invalid recipients, permanent rejections and
	// credential/configuration errors. Retrying is futile.
	CategoryFatal Category = "fatal"
)

// SendError is the structured failure a Sender reports. Classification
// happens at the channel boundary, not by sniffing message substrings
// downstream.
type SendError struct {
	Category Category
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mailer: %s delivery failure: %v", e.Category, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Classify returns the category of a delivery failure. Errors that do
// not carry a category default to transient: a reminder email is
// idempotent and low-stakes, so retrying an unknown failure is the
// safer policy.
func Classify(err error) Category {
	var serr *SendError
	if errors.As(err, &serr) {
		return serr.Category
	}
	return CategoryTransient
}

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
