package heartbeat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/agentcore/bus"
	"github.com/vinayprograms/agentcore/logging"
)

// Sender publishes a heartbeat for every agent of a Source on a ticker.
type Sender struct {
	bus      bus.MessageBus
	source   Source
	pool     string
	interval time.Duration
	logger   *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	sent    atomic.Int64
}

// NewSender creates a heartbeat sender.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSenderConfig().Interval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Sender{
		bus:      cfg.Bus,
		source:   cfg.Source,
		pool:     cfg.Pool,
		interval: interval,
		logger:   logger.WithComponent("heartbeat"),
		now:      time.Now,
	}, nil
}

// Start sends one round immediately and then one per interval until Stop
// or ctx is done.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return ErrAlreadyStarted
	}
	s.running.Store(true)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.doneCh)
	return nil
}

func (s *Sender) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.publish()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			return
		case <-stop:
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *Sender) publish() {
	if err := s.SendNow(); err != nil {
		s.logger.Warn("heartbeat publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// SendNow publishes one heartbeat per agent and returns the joined publish
// errors.
func (s *Sender) SendNow() error {
	now := s.now()
	var errs []error
	for _, a := range s.source.Agents() {
		hb := FromAgent(a, now)
		hb.Pool = s.pool
		data, err := hb.Marshal()
		if err == nil {
			err = s.bus.Publish(hb.Subject(), data)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.sent.Add(1)
	}
	return errors.Join(errs...)
}

// Sent returns how many heartbeats were published.
func (s *Sender) Sent() int64 {
	return s.sent.Load()
}

// Stop stops sending heartbeats and waits for the loop to exit.
func (s *Sender) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return ErrNotStarted
	}
	wasRunning := s.running.Swap(false)
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
	if !wasRunning {
		return ErrNotStarted
	}
	return nil
}
