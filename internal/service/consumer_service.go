package service

import (
	"context"
	"encoding/json"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/memory"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process note event bus and keeps the local
// snapshot cache honest: deleted notes are evicted so no session can init
// from a ghost snapshot.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	snapshots *memory.SnapshotCache
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	snapshots *memory.SnapshotCache,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		snapshots: snapshots,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var payload dto.NoteEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal bus message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	switch payload.Type {
	case "NOTE_DELETED":
		cs.snapshots.Delete(payload.NoteId)
	}

	cs.logger.Info("ConsumerService", "Processed note event", map[string]interface{}{
		"type": payload.Type, "note_id": payload.NoteId, "version": payload.Version,
	})
	msg.Ack()
}
