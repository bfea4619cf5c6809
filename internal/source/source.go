// Package source abstracts where alert messages come from.
// The engine only sees opaque text per channel; login, tabs and
// anti-detection concerns stay inside the concrete drivers.
package source

import "context"

// Message is one chat message as observed on a channel.
// Identity beyond the content fingerprint is not guaranteed: the browser
// driver cannot always recover stable message IDs.
type Message struct {
	ID      string
	Channel string
	Text    string
}

// Channel identifies one monitored alert channel.
// Browser mode resolves by URL, API mode by snowflake ID.
type Channel struct {
	Name string
	ID   string
	URL  string
}

// Key returns the identifier used for dedupe bookkeeping.
func (c Channel) Key() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ID != "" {
		return c.ID
	}
	return c.URL
}

// Source is a pull-based message feed, polled on a fixed interval.
type Source interface {
	// FetchMessages returns the currently visible/latest messages for the
	// channel, oldest first. Duplicate suppression is the caller's job.
	FetchMessages(ctx context.Context, ch Channel) ([]Message, error)

	Close() error
}
