package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExpiredKey(t *testing.T) {
	tests := []struct {
		key  string
		want LockExpiry
		ok   bool
	}{
		{"order_lock:o1", LockExpiry{Kind: "order", ID: "o1"}, true},
		{"cart_lock:alice", LockExpiry{Kind: "cart", ID: "alice"}, true},
		{"proximity:rider_nearby:o1:alice", LockExpiry{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseExpiredKey(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}
