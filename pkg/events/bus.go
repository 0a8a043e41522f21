package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus fans events out from the pipeline to stream writers. Each run gets its
// own topic so concurrent runs never see each other's frames.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NopLogger{}),
	}
}

func topicForRun(runID string) string {
	return "research.run." + runID
}

// Publish sends an event to the run's topic. Publishing to a topic with no
// subscriber is not an error; the frame is simply dropped.
func (b *Bus) Publish(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(topicForRun(event.RunID), msg)
}

// Subscribe returns a channel of decoded events for one run. The channel
// closes when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, runID string) (<-chan Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, topicForRun(runID))
	if err != nil {
		return nil, fmt.Errorf("subscribe to run %s: %w", runID, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Ack() // drop undecodable frames instead of redelivering
				continue
			}
			msg.Ack()
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
