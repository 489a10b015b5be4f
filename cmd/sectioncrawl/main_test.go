package main

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestComponentLogger(t *testing.T) {
	testCases := []struct {
		name    string
		tui     bool
		written bool
	}{
		{"line progress keeps logs", false, true},
		{"dashboard drops logs", true, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := log.New(&buf)

			componentLogger(tc.tui, logger).Warn("Failed to store screenshot", "url", "https://uni.edu/")
			assert.Equal(t, tc.written, buf.Len() > 0)
		})
	}
}
