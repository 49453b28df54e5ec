package internal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicNotifications = "notifications"
	TopicDocuments     = "documents"
)

// NotificationLevel is the severity of a user-visible notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a semantic, UI-agnostic message for the user
type Notification struct {
	Level      NotificationLevel `json:"level"`
	Message    string            `json:"message"`
	DocumentID string            `json:"document_id,omitempty"`
	Time       time.Time         `json:"time"`
}

// ChangeType describes what happened to a document
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// DocumentChange is published whenever the Store is mutated
type DocumentChange struct {
	Type     ChangeType `json:"type"`
	Document Document   `json:"document"`
}

// Publisher receives core events. Implementations must not call back into the core.
type Publisher interface {
	PublishNotification(n Notification)
	PublishChange(c DocumentChange)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishNotification(Notification) {}
func (NopPublisher) PublishChange(DocumentChange)     {}

// Bus publishes core events on an in-process watermill pub/sub
type Bus struct {
	pubSub *gochannel.GoChannel
	wg     sync.WaitGroup
}

// NewBus creates a bus. Publishing blocks until every subscriber acked, so
// subscribers observe events in publication order.
func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{BlockPublishUntilSubscriberAck: true},
			watermill.NopLogger{},
		),
	}
}

func (b *Bus) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		LogWarn("Failed to encode %s event: %v", topic, err)
		return
	}
	if err := b.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		LogDebug("Dropped %s event: %v", topic, err)
	}
}

// PublishNotification implements Publisher
func (b *Bus) PublishNotification(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	b.publish(TopicNotifications, n)
}

// PublishChange implements Publisher
func (b *Bus) PublishChange(c DocumentChange) {
	b.publish(TopicDocuments, c)
}

// OnNotification runs fn for every notification until ctx ends or the bus closes
func (b *Bus) OnNotification(ctx context.Context, fn func(Notification)) error {
	return subscribe(ctx, b, TopicNotifications, fn)
}

// OnChange runs fn for every document change until ctx ends or the bus closes
func (b *Bus) OnChange(ctx context.Context, fn func(DocumentChange)) error {
	return subscribe(ctx, b, TopicDocuments, fn)
}

func subscribe[T any](ctx context.Context, b *Bus, topic string, fn func(T)) error {
	messages, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			var v T
			if err := json.Unmarshal(msg.Payload, &v); err != nil {
				LogWarn("Failed to decode %s event: %v", topic, err)
			} else {
				fn(v)
			}
			msg.Ack()
		}
	}()
	return nil
}

// Close stops the bus and waits for subscriber callbacks to finish
func (b *Bus) Close() error {
	err := b.pubSub.Close()
	b.wg.Wait()
	return err
}
