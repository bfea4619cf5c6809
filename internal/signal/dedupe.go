package signal

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
)

// Deduper suppresses re-processing of messages already seen on a channel.
// Fingerprints are md5 of the trimmed text, kept in a per-channel LRU so
// memory stays bounded over long runtimes. Exact-match only: near-duplicate
// phrasing is treated as new text.
type Deduper struct {
	mu       sync.Mutex
	capacity int
	channels map[string]*lruSet
}

func NewDeduper(capacity int) *Deduper {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Deduper{
		capacity: capacity,
		channels: make(map[string]*lruSet),
	}
}

// Observe records the message fingerprint and reports whether it was novel.
// Safe for concurrent use from multiple channel watchers.
func (d *Deduper) Observe(channel, text string) bool {
	fp := Fingerprint(text)
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.channels[channel]
	if !ok {
		set = newLRUSet(d.capacity)
		d.channels[channel] = set
	}
	return set.add(fp)
}

// Len reports the number of fingerprints currently held for a channel.
func (d *Deduper) Len(channel string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.channels[channel]; ok {
		return set.order.Len()
	}
	return 0
}

// Fingerprint hashes the trimmed message text.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

type lruSet struct {
	capacity int
	order    *list.List // front = most recent
	index    map[string]*list.Element
}

func newLRUSet(capacity int) *lruSet {
	return &lruSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// add returns true iff the key was not present. Present keys are refreshed.
func (s *lruSet) add(key string) bool {
	if el, ok := s.index[key]; ok {
		s.order.MoveToFront(el)
		return false
	}
	s.index[key] = s.order.PushFront(key)
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
	return true
}
