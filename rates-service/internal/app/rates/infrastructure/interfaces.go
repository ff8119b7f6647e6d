package infrastructure

import "context"

// MessagePublisher публикует сообщения во внешний брокер
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}
