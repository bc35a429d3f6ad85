// Package bus models the publish/subscribe envelope and the dotted-glob
// topic matching rules used by the communication bus service.
package bus

import (
	"strings"
	"time"
)

// Message is a single envelope published on the bus.
type Message struct {
	ID            string
	Topic         string
	Sender        string
	Payload       any
	CorrelationID string
	ReplyTo       string
	PublishedAt   time.Time
}

// TopicMatches reports whether topic matches pattern, where pattern
// segments are dot-separated and may contain "*" (matches exactly one
// segment) or "#" (matches the rest of the topic, must be the final
// segment).
func TopicMatches(pattern, topic string) bool {
	pSegs := strings.Split(pattern, ".")
	tSegs := strings.Split(topic, ".")

	for i, p := range pSegs {
		if p == "#" {
			return true // matches everything remaining, including zero segments
		}
		if i >= len(tSegs) {
			return false
		}
		if p != "*" && p != tSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(tSegs)
}
