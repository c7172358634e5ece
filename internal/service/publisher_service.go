package service

import (
	"context"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/realtime"
)

// IPublisherService hands persisted rows to the fan-out.
type IPublisherService interface {
	PublishMessageInserted(ctx context.Context, msg entity.Message) error
}

type publisherService struct {
	fanout realtime.Fanout
}

func NewPublisherService(fanout realtime.Fanout) IPublisherService {
	return &publisherService{
		fanout: fanout,
	}
}

func (s *publisherService) PublishMessageInserted(ctx context.Context, msg entity.Message) error {
	return realtime.PublishMessage(ctx, s.fanout, msg)
}
