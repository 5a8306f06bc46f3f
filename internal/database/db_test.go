package database_test

import (
	"testing"

	"github.com/replycoach/service/internal/database"
)

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "plain path", path: "replycoach.db", expected: "replycoach.db"},
		{name: "file scheme", path: "file:replycoach.db", expected: "replycoach.db"},
		{name: "query params stripped", path: "file:replycoach.db?cache=shared&mode=rwc", expected: "replycoach.db"},
		{name: "url escaping decoded", path: "file:data%2Freplycoach.db", expected: "data/replycoach.db"},
		{name: "relative path", path: "./data/replycoach.db", expected: "./data/replycoach.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := database.ExtractDBNameFromPath(tt.path); got != tt.expected {
				t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}
