// Package notifications fans realtime events out to websocket clients through Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
	dmChannelPrefix   = "chat:dm:"
)

// Notifier publishes realtime events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a payload to every socket of one user.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// PublishConversation sends a payload to both participants of a direct conversation.
func (n *Notifier) PublishConversation(ctx context.Context, userA, userB uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, ConversationChannel(userA, userB), payload).Err()
}

// StartSubscriber subscribes to user, broadcast and conversation channels and calls
// onMessage for each incoming message until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel, dmChannelPrefix+"*")
	// Wait for the subscription to be confirmed so publishes right after start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in notification subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// BroadcastChannel is the channel every connected user receives.
func BroadcastChannel() string {
	return broadcastChannel
}

// ConversationChannel derives the channel of the unordered pair {a, b}.
func ConversationChannel(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d:%d", dmChannelPrefix, a, b)
}

// Recipients resolves the user ids a channel addresses. broadcast is true for the
// broadcast channel; ok is false for channels this package does not own.
func Recipients(channel string) (ids []uint, broadcast bool, ok bool) {
	switch {
	case channel == broadcastChannel:
		return nil, true, true
	case strings.HasPrefix(channel, userChannelPrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(channel, userChannelPrefix), 10, 64)
		if err != nil {
			return nil, false, false
		}
		return []uint{uint(id)}, false, true
	case strings.HasPrefix(channel, dmChannelPrefix):
		var a, b uint
		if _, err := fmt.Sscanf(strings.TrimPrefix(channel, dmChannelPrefix), "%d:%d", &a, &b); err != nil {
			return nil, false, false
		}
		if a == b {
			return []uint{a}, false, true
		}
		return []uint{a, b}, false, true
	default:
		return nil, false, false
	}
}
