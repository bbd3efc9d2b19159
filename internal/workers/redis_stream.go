package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

const (
	streamKey     = "bot:events"
	consumerGroup = "sponsor_points_consumers"

	// pendingID reads this consumer's unacked entries, newID reads never-delivered ones.
	pendingID = "0"
	newID     = ">"

	EventBotRemoved = "bot_removed"
	EventBotAdded   = "bot_added"
)

// AccessUpdater stores the bot access flag of every sponsor channel registered under chatID.
type AccessUpdater interface {
	UpdateAccessByChatID(ctx context.Context, chatID string, hasAccess bool, checkedAt time.Time) (int64, error)
}

// RedisStreamWorker applies bot membership events published by the bot process.
type RedisStreamWorker struct {
	rdb      *redis.Client
	channels AccessUpdater
	consumer string
	logger   zerolog.Logger
	now      func() time.Time

	retryDelay time.Duration
}

func NewRedisStreamWorker(rdb *redis.Client, channels AccessUpdater, consumer string, logger zerolog.Logger) *RedisStreamWorker {
	if consumer == "" {
		consumer = "sponsor_points_worker_1"
	}
	return &RedisStreamWorker{
		rdb:      rdb,
		channels: channels,
		consumer: consumer,
		logger:   logger,
		now:      time.Now,

		retryDelay: time.Second,
	}
}

// Start blocks reading the stream until ctx is cancelled. Entries this consumer read but never
// acked are replayed first, and again after any failed update.
func (w *RedisStreamWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		w.logger.Error().Err(err).Msg("Error creating consumer group")
	}

	w.logger.Info().Str("stream", streamKey).Str("consumer", w.consumer).Msg("Starting Redis stream worker")

	readID := pendingID
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping Redis stream worker")
			return
		default:
		}

		args := &go_redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: w.consumer,
			Streams:  []string{streamKey, readID},
			Count:    10,
			Block:    5 * time.Second,
		}
		if readID == pendingID {
			args.Block = -1
		}
		entries, err := w.rdb.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, go_redis.Nil) || ctx.Err() != nil {
				if readID == pendingID {
					readID = newID
				}
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading from stream")
			w.pause(ctx)
			continue
		}

		read, failed := 0, 0
		for _, stream := range entries {
			for _, msg := range stream.Messages {
				read++
				if err := w.processMessage(ctx, msg.Values); err != nil {
					failed++
					continue
				}
				if err := w.rdb.XAck(ctx, streamKey, consumerGroup, msg.ID).Err(); err != nil {
					w.logger.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack stream message")
				}
			}
		}

		switch {
		case failed > 0:
			readID = pendingID
			w.pause(ctx)
		case readID == pendingID && read == 0:
			readID = newID
		}
	}
}

func (w *RedisStreamWorker) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}

// processMessage applies one event. Unknown or malformed events are dropped without error;
// an error means the update did not reach the store and the entry must not be acked.
func (w *RedisStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) error {
	eventType, _ := values["type"].(string)

	var hasAccess bool
	switch eventType {
	case EventBotRemoved:
		hasAccess = false
	case EventBotAdded:
		hasAccess = true
	default:
		return nil
	}

	chatID, _ := values["channel_id"].(string)
	if chatID == "" {
		w.logger.Warn().Interface("values", values).Msg("Bot event without channel_id")
		return nil
	}

	n, err := w.channels.UpdateAccessByChatID(ctx, chatID, hasAccess, w.now())
	if err != nil {
		w.logger.Error().Err(err).Str("channel_id", chatID).Str("event", eventType).Msg("Failed to update channel access")
		return err
	}
	if n > 0 {
		w.logger.Info().
			Str("channel_id", chatID).
			Bool("bot_has_access", hasAccess).
			Int64("channels", n).
			Msg("Channel access updated from bot event")
	}
	return nil
}
