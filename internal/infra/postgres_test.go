package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   PoolConfig
		want PoolConfig
	}{
		{
			name: "zero value gets defaults",
			in:   PoolConfig{},
			want: PoolConfig{MaxConns: defaultMaxConns, MinConns: defaultMinConns},
		},
		{
			name: "explicit values kept",
			in:   PoolConfig{MaxConns: 25, MinConns: 5},
			want: PoolConfig{MaxConns: 25, MinConns: 5},
		},
		{
			name: "negative values replaced",
			in:   PoolConfig{MaxConns: -1, MinConns: -1},
			want: PoolConfig{MaxConns: defaultMaxConns, MinConns: defaultMinConns},
		},
		{
			name: "partial config fills only the gap",
			in:   PoolConfig{MaxConns: 40},
			want: PoolConfig{MaxConns: 40, MinConns: defaultMinConns},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}
