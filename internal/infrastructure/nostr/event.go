package nostr

import (
	"fmt"
	"strconv"

	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/nbd-wtf/go-nostr"
)

// EventKind is the nostr event kind carrying oracle envelopes.
const EventKind = 4242

const (
	subjectTag   = "subject"
	channelTag   = "channel"
	recipientTag = "p"
)

// toEvent maps an outgoing message on an unsigned nostr event.
func toEvent(msg protocol.Message) nostr.Event {
	tags := nostr.Tags{
		{subjectTag, msg.Subject},
		{channelTag, strconv.Itoa(msg.Channel)},
	}
	if msg.Recipient != "" {
		tags = append(tags, nostr.Tag{recipientTag, msg.Recipient})
	}
	return nostr.Event{
		PubKey:    msg.Source,
		CreatedAt: nostr.Timestamp(msg.Epoch),
		Kind:      EventKind,
		Tags:      tags,
		Content:   msg.Body,
	}
}

// toMessage maps a received nostr event back on the oracle envelope.
func toMessage(ev *nostr.Event) (protocol.Message, error) {
	if ev.Kind != EventKind {
		return protocol.Message{}, fmt.Errorf("unexpected event kind %d", ev.Kind)
	}

	channel := 0
	if tag := ev.Tags.GetFirst([]string{channelTag, ""}); tag != nil {
		n, err := strconv.Atoi(tag.Value())
		if err != nil {
			return protocol.Message{}, fmt.Errorf("invalid channel tag: %w", err)
		}
		channel = n
	}
	subject := ""
	if tag := ev.Tags.GetFirst([]string{subjectTag, ""}); tag != nil {
		subject = tag.Value()
	}
	recipient := ""
	if tag := ev.Tags.GetFirst([]string{recipientTag, ""}); tag != nil {
		recipient = tag.Value()
	}

	msg := protocol.Message{
		Envelope: protocol.Envelope{
			Source:    ev.PubKey,
			Channel:   channel,
			Epoch:     int64(ev.CreatedAt),
			Signature: ev.Sig,
			Body:      ev.Content,
		},
		Subject:   subject,
		Recipient: recipient,
	}
	if err := msg.Validate(); err != nil {
		return protocol.Message{}, err
	}
	return msg, nil
}
