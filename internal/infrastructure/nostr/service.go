package nostr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/nbd-wtf/go-nostr"
	log "github.com/sirupsen/logrus"
)

const seenEventsLimit = 10000

type Config struct {
	Relays     []string
	PrivateKey string
	// Datadir, if set, persists the subscription position across restarts.
	Datadir string
	// Lookback is how far in the past a subscription without a persisted
	// position starts.
	Lookback time.Duration
}

type service struct {
	privateKey string
	publicKey  string
	relays     []*nostr.Relay
	lookback   time.Duration
	cursor     *cursor

	mu   *sync.Mutex
	seen map[string]struct{}
}

// NewService connects to the configured relays. It fails only if none of
// them is reachable.
func NewService(ctx context.Context, cfg Config) (ports.TransportService, error) {
	if len(cfg.Relays) <= 0 {
		return nil, fmt.Errorf("missing nostr relays")
	}
	publicKey, err := nostr.GetPublicKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid nostr private key: %w", err)
	}
	cursor, err := loadCursor(cfg.Datadir)
	if err != nil {
		return nil, err
	}

	relays := make([]*nostr.Relay, 0, len(cfg.Relays))
	for _, url := range cfg.Relays {
		relay, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			log.WithError(err).Warnf("failed to connect to relay %s", url)
			continue
		}
		relays = append(relays, relay)
	}
	if len(relays) <= 0 {
		return nil, fmt.Errorf("failed to connect to any of the relays %v", cfg.Relays)
	}

	return &service{
		privateKey: cfg.PrivateKey,
		publicKey:  publicKey,
		relays:     relays,
		lookback:   cfg.Lookback,
		cursor:     cursor,
		mu:         &sync.Mutex{},
		seen:       make(map[string]struct{}),
	}, nil
}

func (s *service) Identity() string {
	return s.publicKey
}

func (s *service) Broadcast(ctx context.Context, subject string, body []byte) error {
	return s.publish(ctx, "", subject, body)
}

func (s *service) Send(ctx context.Context, recipient, subject string, body []byte) error {
	if recipient == "" {
		return fmt.Errorf("missing recipient")
	}
	return s.publish(ctx, recipient, subject, body)
}

func (s *service) Subscribe(ctx context.Context) (<-chan protocol.Message, error) {
	filters := s.filters(time.Now())

	subs := make([]*nostr.Subscription, 0, len(s.relays))
	for _, relay := range s.relays {
		sub, err := relay.Subscribe(ctx, filters)
		if err != nil {
			log.WithError(err).Warnf("failed to subscribe to relay %s", relay.URL)
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) <= 0 {
		return nil, fmt.Errorf("failed to subscribe to any relay")
	}

	out := make(chan protocol.Message)
	wg := &sync.WaitGroup{}
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *nostr.Subscription) {
			defer wg.Done()
			defer sub.Unsub()
			s.listen(ctx, sub, out)
		}(sub)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (s *service) Close() {
	for _, relay := range s.relays {
		// nolint:all
		relay.Close()
	}
}

func (s *service) publish(ctx context.Context, recipient, subject string, body []byte) error {
	msg := protocol.Message{
		Envelope:  protocol.NewEnvelope(s.publicKey, body),
		Subject:   subject,
		Recipient: recipient,
	}
	ev := toEvent(msg)
	if err := ev.Sign(s.privateKey); err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}
	s.markSeen(ev.ID)

	var errs []error
	for _, relay := range s.relays {
		if err := relay.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", relay.URL, err))
		}
	}
	if len(errs) == len(s.relays) {
		return fmt.Errorf("failed to publish %s: %w", subject, errors.Join(errs...))
	}
	for _, err := range errs {
		log.WithError(err).Warn("failed to publish event")
	}
	return nil
}

func (s *service) listen(ctx context.Context, sub *nostr.Subscription, out chan<- protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if ev.PubKey == s.publicKey || !s.markSeen(ev.ID) {
				continue
			}
			if ok, err := ev.CheckSignature(); !ok || err != nil {
				log.WithField("source", ev.PubKey).Debug("dropping event with invalid signature")
				continue
			}
			msg, err := toMessage(ev)
			if err != nil {
				log.WithError(err).Debug("dropping malformed event")
				continue
			}
			if msg.Recipient != "" && msg.Recipient != s.publicKey {
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
			if err := s.cursor.advance(ev.CreatedAt); err != nil {
				log.WithError(err).Warn("failed to persist nostr cursor")
			}
		}
	}
}

func (s *service) filters(now time.Time) nostr.Filters {
	since := s.cursor.since(now, s.lookback)
	return nostr.Filters{{
		Kinds: []int{EventKind},
		Since: &since,
	}}
}

// markSeen reports whether id was seen for the first time. The same event
// is delivered once per relay.
func (s *service) markSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	if len(s.seen) >= seenEventsLimit {
		s.seen = make(map[string]struct{})
	}
	s.seen[id] = struct{}{}
	return true
}
