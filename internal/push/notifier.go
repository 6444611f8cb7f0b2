package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/aliuyar1234/cartshare/internal/metrics"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier turns workflow events into push messages for the recipients'
// registered devices. Sends run in the background; Wait blocks until every
// started send has finished.
type Notifier struct {
	sink     Sink
	profiles store.ProfileStore
	wg       sync.WaitGroup
}

func NewNotifier(sink Sink, profiles store.ProfileStore) *Notifier {
	if sink == nil {
		sink = NopSink{}
	}
	return &Notifier{sink: sink, profiles: profiles}
}

// ReplacementsRequested tells the other list members that an item ran out
// and suggestions are waiting.
func (n *Notifier) ReplacementsRequested(ctx context.Context, recipients []uuid.UUID, listID, itemID uuid.UUID, itemName string, count int) {
	body := fmt.Sprintf("%s is out of stock. %d replacement suggestion(s) need your answer.", itemName, count)
	if count == 1 {
		body = fmt.Sprintf("%s is out of stock. A replacement suggestion needs your answer.", itemName)
	}
	n.deliver(ctx, recipients, Message{
		Title: "Item out of stock",
		Body:  body,
		Data: map[string]any{
			"type":    "replacement_request",
			"list_id": listID.String(),
			"item_id": itemID.String(),
		},
	})
}

// InvitationReceived tells a registered user about a new invitation.
func (n *Notifier) InvitationReceived(ctx context.Context, recipient, invitationID uuid.UUID, listName, inviterName string) {
	n.deliver(ctx, []uuid.UUID{recipient}, Message{
		Title: "New list invitation",
		Body:  fmt.Sprintf("%s invited you to %s", inviterName, listName),
		Data: map[string]any{
			"type":          "invitation",
			"invitation_id": invitationID.String(),
		},
	})
}

// Wait blocks until all background sends have completed.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, recipients []uuid.UUID, msg Message) {
	if n == nil || len(recipients) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		profiles, err := n.profiles.ProfilesByIDs(ctx, recipients)
		if err != nil {
			metrics.PushSends.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("Failed to load push recipients")
			return
		}

		for _, id := range recipients {
			p, ok := profiles[id]
			if !ok || p.PushToken == nil || *p.PushToken == "" {
				metrics.PushSends.WithLabelValues("no_token").Inc()
				continue
			}
			m := msg
			m.DeviceToken = *p.PushToken
			ack, err := n.sink.Send(ctx, m)
			if err != nil {
				metrics.PushSends.WithLabelValues("error").Inc()
				log.Warn().Err(err).Str("user_id", id.String()).Str("title", msg.Title).Msg("Failed to send push notification")
				continue
			}
			metrics.PushSends.WithLabelValues("sent").Inc()
			log.Debug().Str("user_id", id.String()).Str("ticket", ack.ID).Msg("Push notification sent")
		}
	}()
}
