package bus_test

import (
	"testing"

	"github.com/kestrel-run/orchestra/internal/domain/bus"
)

func TestTopicMatches(t *testing.T) {
	cases := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"orchestra.task.completed", "orchestra.task.completed", true},
		{"orchestra.task.completed", "orchestra.task.failed", false},
		{"orchestra.*.completed", "orchestra.task.completed", true},
		{"orchestra.*.completed", "orchestra.plan.completed", true},
		{"orchestra.*.completed", "orchestra.task.sub.completed", false},
		{"orchestra.#", "orchestra.task.completed", true},
		{"orchestra.#", "orchestra", true},
		{"orchestra.task.#", "orchestra.task", true},
		{"orchestra.task.#", "orchestra.task.completed.extra", true},
		{"*.task.*", "orchestra.task.completed", true},
		{"*.task.*", "orchestra.plan.completed", false},
	}

	for _, tc := range cases {
		if got := bus.TopicMatches(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("TopicMatches(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}
