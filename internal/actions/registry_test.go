package actions

import (
	"bytes"
	"context"
	"testing"

	"github.com/quantmind-br/releasesync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := utils.NewLogger(utils.LoggerOptions{Level: "info", Format: "json", Output: &buf})

	r := Default(logger)
	assert.Equal(t, []string{LoadLib, LoadSrc}, r.Names())

	action, ok := r.Lookup(LoadLib)
	require.True(t, ok)
	require.NoError(t, action(context.Background(), "build/2/5/linux/widget-linux-x64.tar.gz"))

	assert.Contains(t, buf.String(), "Loaded library and extracted")
	assert.Contains(t, buf.String(), "build/2/5/linux/widget-linux-x64.tar.gz")
}

func TestRegistry_Register(t *testing.T) {
	noop := func(ctx context.Context, path string) error { return nil }

	tests := []struct {
		name    string
		setup   func(r *Registry)
		key     string
		action  Action
		wantErr string
	}{
		{name: "ok", key: "custom", action: noop},
		{name: "empty name", key: "", action: noop, wantErr: "cannot be empty"},
		{name: "nil action", key: "x", action: nil, wantErr: "is nil"},
		{
			name:    "duplicate",
			setup:   func(r *Registry) { r.MustRegister("dup", noop) },
			key:     "dup",
			action:  noop,
			wantErr: "already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if tt.setup != nil {
				tt.setup(r)
			}
			err := r.Register(tt.key, tt.action)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, ok := r.Lookup(tt.key)
			assert.True(t, ok)
		})
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := Default(nil)
	_, ok := r.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		r.MustRegister("", func(ctx context.Context, path string) error { return nil })
	})
}
