package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultChannelPrefix namespaces the per-user topics.
const DefaultChannelPrefix = "wardrobe:push"

// ChannelFor is the per-user topic name.
func ChannelFor(prefix string, userID int64) string {
	return fmt.Sprintf("%s:user:%d", prefix, userID)
}

// UserFromChannel parses the user id back out of a topic name.
func UserFromChannel(prefix, channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, prefix+":user:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RedisNotifier publishes notifications on the user's pub/sub topic.
// Pub/sub has no history, so a user with no subscriber simply misses it.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

var _ Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, prefix string) *RedisNotifier {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisNotifier{client: client, prefix: prefix}
}

func (r *RedisNotifier) Notify(ctx context.Context, userID int64, n Notification) error {
	payload, err := Encode(n)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, ChannelFor(r.prefix, userID), payload).Err(); err != nil {
		return fmt.Errorf("publish notification for user %d: %w", userID, err)
	}
	return nil
}

// Bridge forwards every per-user topic message to a local Notifier (the hub).
type Bridge struct {
	client *redis.Client
	prefix string
	sink   Notifier
}

func NewBridge(client *redis.Client, prefix string, sink Notifier) *Bridge {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Bridge{client: client, prefix: prefix, sink: sink}
}

// Run subscribes to all user topics and blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, b.prefix+":user:*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to push topics: %w", err)
	}
	log.WithField("pattern", b.prefix+":user:*").Info("push bridge subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.Deliver(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// Deliver routes one raw topic message. Bad messages are logged and dropped.
func (b *Bridge) Deliver(ctx context.Context, channel string, payload []byte) {
	userID, ok := UserFromChannel(b.prefix, channel)
	if !ok {
		log.WithField("channel", channel).Warn("push bridge: ignoring message on unexpected channel")
		return
	}
	n, err := Decode(payload)
	if err != nil {
		log.WithFields(log.Fields{"channel": channel, "error": err}).Warn("push bridge: dropping undecodable message")
		return
	}
	if err := b.sink.Notify(ctx, userID, n); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "job_id": n.JobID, "error": err}).Warn("push bridge: delivery failed")
	}
}
