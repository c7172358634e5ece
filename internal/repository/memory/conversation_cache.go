package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ConversationCache remembers which conversation a (listing, buyer) pair resolved to.
// The mapping never changes once written, so stale entries are impossible; the TTL
// only bounds memory.
type ConversationCache struct {
	cache *cache.Cache
}

func NewConversationCache(ttl time.Duration) *ConversationCache {
	// Purge expired items at twice the TTL
	c := cache.New(ttl, 2*ttl)
	return &ConversationCache{
		cache: c,
	}
}

func conversationKey(listingId, buyerId uuid.UUID) string {
	return listingId.String() + ":" + buyerId.String()
}

func (r *ConversationCache) Save(listingId, buyerId, conversationId uuid.UUID) {
	r.cache.Set(conversationKey(listingId, buyerId), conversationId, cache.DefaultExpiration)
}

func (r *ConversationCache) Get(listingId, buyerId uuid.UUID) (uuid.UUID, bool) {
	if x, found := r.cache.Get(conversationKey(listingId, buyerId)); found {
		return x.(uuid.UUID), true
	}
	return uuid.Nil, false
}
