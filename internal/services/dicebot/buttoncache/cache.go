// Package buttoncache tracks live button messages per channel so that an
// older message showing the same configuration can be retired when a new
// one is posted.
//
// The index is bounded by channel count. When capacity is reached the least
// recently used channel is dropped along with everything tracked for it;
// duplicates in a dropped channel are never cleaned up. Each operation is
// safe for concurrent use. A register racing a retire pass on the same
// channel may survive until the next pass.
package buttoncache

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultChannels is the default number of tracked channels.
const DefaultChannels = 10_000

// Cache is the per-channel live message index.
type Cache struct {
	channels *lru.Cache[string, *channel]
}

type channel struct {
	mu       sync.Mutex
	messages map[string]uint64
}

// New creates a cache tracking at most capacity channels. Zero or a
// negative capacity selects DefaultChannels.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultChannels
	}
	channels, err := lru.New[string, *channel](capacity)
	if err != nil {
		return nil, fmt.Errorf("create channel index: %w", err)
	}
	return &Cache{channels: channels}, nil
}

// Register records messageID as live under fingerprint. Registering the
// same message again replaces its fingerprint.
func (c *Cache) Register(channelID, messageID string, fingerprint uint64) {
	ch := c.channel(channelID)
	ch.mu.Lock()
	ch.messages[messageID] = fingerprint
	ch.mu.Unlock()
}

// Unregister removes messageID when it is tracked under fingerprint.
func (c *Cache) Unregister(channelID, messageID string, fingerprint uint64) {
	ch, ok := c.channels.Peek(channelID)
	if !ok {
		return
	}
	ch.mu.Lock()
	if current, ok := ch.messages[messageID]; ok && current == fingerprint {
		delete(ch.messages, messageID)
	}
	ch.mu.Unlock()
}

// RetireOthersWith removes every message of channelID tracked under
// fingerprint except keepMessageID and returns the removed ids in order.
func (c *Cache) RetireOthersWith(channelID, keepMessageID string, fingerprint uint64) []string {
	ch, ok := c.channels.Get(channelID)
	if !ok {
		return nil
	}
	ch.mu.Lock()
	var retired []string
	for messageID, current := range ch.messages {
		if messageID == keepMessageID || current != fingerprint {
			continue
		}
		retired = append(retired, messageID)
		delete(ch.messages, messageID)
	}
	ch.mu.Unlock()
	sort.Strings(retired)
	return retired
}

// Live lists the messages of channelID tracked under fingerprint.
func (c *Cache) Live(channelID string, fingerprint uint64) []string {
	ch, ok := c.channels.Peek(channelID)
	if !ok {
		return nil
	}
	ch.mu.Lock()
	var live []string
	for messageID, current := range ch.messages {
		if current == fingerprint {
			live = append(live, messageID)
		}
	}
	ch.mu.Unlock()
	sort.Strings(live)
	return live
}

// ForgetChannel drops everything tracked for channelID.
func (c *Cache) ForgetChannel(channelID string) {
	c.channels.Remove(channelID)
}

// Channels reports the number of tracked channels.
func (c *Cache) Channels() int {
	return c.channels.Len()
}

func (c *Cache) channel(channelID string) *channel {
	if ch, ok := c.channels.Get(channelID); ok {
		return ch
	}
	fresh := &channel{messages: make(map[string]uint64)}
	if existing, ok, _ := c.channels.PeekOrAdd(channelID, fresh); ok {
		return existing
	}
	return fresh
}
