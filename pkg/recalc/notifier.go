// Package recalc carries "compliance data changed, refresh the score"
// messages from mutation paths to the recalculation worker. Mutations
// call the notifier explicitly after committing; there are no implicit
// save hooks, so bulk loads can swap in a muted notifier and trigger a
// single recalculation at the end instead of one per row.
package recalc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sortedhq/sorted/pkg/model"
)

const Channel = "sorted:recalc"

type Message struct {
	TenantID  uuid.UUID          `json:"tenant_id"`
	Trigger   model.ScoreTrigger `json:"trigger"`
	Reason    string             `json:"reason,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

type Notifier interface {
	ItemChanged(ctx context.Context, tenantID uuid.UUID, reason string) error
}

type BusNotifier struct {
	client redis.UniversalClient
}

func NewBusNotifier(client redis.UniversalClient) *BusNotifier {
	return &BusNotifier{client: client}
}

func (n *BusNotifier) ItemChanged(ctx context.Context, tenantID uuid.UUID, reason string) error {
	msg := Message{
		TenantID:  tenantID,
		Trigger:   model.TriggerItemChange,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, Channel, payload).Err()
}

// Subscribe delivers recalculation messages until ctx is cancelled.
func Subscribe(ctx context.Context, client redis.UniversalClient) <-chan Message {
	sub := client.Subscribe(ctx, Channel)
	ch := make(chan Message, 100)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var message Message
			if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
				continue
			}
			ch <- message
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch
}

// Muted drops every notification. Used by the seeder so a bulk load
// does not fan out one recalculation per item.
type Muted struct{}

func (Muted) ItemChanged(ctx context.Context, tenantID uuid.UUID, reason string) error {
	return nil
}
