package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"

	outputBuffer = 64
)

// WatermillBridge is a Bus over watermill's GoChannel.
type WatermillBridge struct {
	channel *gochannel.GoChannel
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewWatermillBridge creates an in-memory bus.
func NewWatermillBridge(logger *slog.Logger) *WatermillBridge {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewStdLogger(false, false)
	return &WatermillBridge{
		channel: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: outputBuffer}, wmLogger),
		logger:  logger,
	}
}

func toWatermill(msg Message) *message.Message {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	wm.Metadata.Set(metaKeyTopic, msg.Topic)
	if msg.UserID != "" {
		wm.Metadata.Set(metaKeyUserID, msg.UserID)
	}
	return wm
}

func fromWatermill(wm *message.Message) Message {
	msg := Message{
		Topic:    wm.Metadata.Get(metaKeyTopic),
		UserID:   wm.Metadata.Get(metaKeyUserID),
		Payload:  wm.Payload,
		Metadata: make(map[string]string, len(wm.Metadata)),
	}
	for k, v := range wm.Metadata {
		if k != metaKeyTopic {
			msg.Metadata[k] = v
		}
	}
	return msg
}

func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.channel.Publish(msg.Topic, toWatermill(msg))
}

func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.channel.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wm := range messages {
			if err := handler(ctx, fromWatermill(wm)); err != nil {
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wm.UUID, "error", err)
				wm.Nack()
				continue
			}
			wm.Ack()
		}
		wb.logger.Debug("Subscription ended", "topic", topic)
	}()
	return nil
}

// Close stops all subscriptions. It is safe to call more than once.
func (wb *WatermillBridge) Close() error {
	wb.closeOnce.Do(func() {
		wb.closeErr = wb.channel.Close()
	})
	return wb.closeErr
}
