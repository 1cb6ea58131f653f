package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message is a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// MessageBus is a publish/subscribe transport.
type MessageBus interface {
	// Publish sends data to every subscriber whose pattern matches subject.
	// Publish subjects must not contain wildcards.
	Publish(subject string, data []byte) error

	// Subscribe receives messages published to subjects matching pattern.
	Subscribe(pattern string) (Subscription, error)

	// Close shuts down the bus and ends every subscription.
	Close() error
}

// Subscription is an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// The channel is closed when the subscription ends.
	Messages() <-chan *Message

	// Unsubscribe ends the subscription. Calling it twice is a no-op.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize of subscription channels. Messages for a full channel are
	// dropped. Default: 256.
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks a subscription pattern. Tokens are separated by
// dots; "*" matches one token and ">" matches the rest and must come last.
func ValidateSubject(subject string) error {
	if subject == "" || strings.ContainsAny(subject, " \t\r\n") {
		return ErrInvalidSubject
	}
	tokens := strings.Split(subject, ".")
	for i, tok := range tokens {
		if tok == "" {
			return ErrInvalidSubject
		}
		if tok == ">" && i != len(tokens)-1 {
			return ErrInvalidSubject
		}
	}
	return nil
}

// ValidatePublishSubject checks a concrete subject: a valid subject with no
// wildcard tokens.
func ValidatePublishSubject(subject string) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "*" || tok == ">" {
			return ErrInvalidSubject
		}
	}
	return nil
}

// MatchSubject reports whether subject matches pattern.
//
//	tasks.done.*   matches tasks.done.echo
//	heartbeat.>    matches heartbeat.a1 and heartbeat.a1.extra
func MatchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
