package app

import "testing"

func TestKeyspace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []any
		want string
	}{
		{[]any{"get", "idempotency:u1:POST:/v1/trips:k"}, "idempotency"},
		{[]any{"get", "cache:universities:active"}, "cache"},
		{[]any{"ping"}, "redis"},
		{[]any{"get", 42}, "redis"},
		{[]any{"get", "plain"}, "plain"},
	}

	for _, tt := range tests {
		if got := keyspace(tt.args); got != tt.want {
			t.Errorf("keyspace(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
