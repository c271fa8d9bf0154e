package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	ListingKeyPrefix       = "listing:%d"
	ListingFeedKey         = "listings:feed"
	WSTicketKeyPrefix      = "ws_ticket:%s"
	TokenBlacklistPrefix   = "blacklist:%s"
	PasswordResetKeyPrefix = "pwreset:%s"
)

const (
	UserTTL          = 5 * time.Minute
	ListingTTL       = 5 * time.Minute
	ListingFeedTTL   = 2 * time.Minute
	WSTicketTTL      = 30 * time.Second
	PasswordResetTTL = time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ListingKey(listingID uint) string {
	return fmt.Sprintf(ListingKeyPrefix, listingID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistPrefix, jti)
}

func PasswordResetKey(token string) string {
	return fmt.Sprintf(PasswordResetKeyPrefix, token)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateListing drops the listing detail and the shared feed projection.
func InvalidateListing(ctx context.Context, listingID uint) {
	Invalidate(ctx, ListingKey(listingID), ListingFeedKey)
}

// InvalidateFeed drops the shared feed projection only.
func InvalidateFeed(ctx context.Context) {
	Invalidate(ctx, ListingFeedKey)
}

// InvalidateOwner drops everything that embeds a user's public profile: the user
// entry, the detail of each listing they own and the shared feed.
func InvalidateOwner(ctx context.Context, userID uint, listingIDs []uint) {
	keys := make([]string, 0, len(listingIDs)+2)
	keys = append(keys, UserKey(userID), ListingFeedKey)
	for _, id := range listingIDs {
		keys = append(keys, ListingKey(id))
	}
	Invalidate(ctx, keys...)
}
