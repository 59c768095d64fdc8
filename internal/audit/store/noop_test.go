package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/associates-api/internal/audit"
	"github.com/serroba/associates-api/internal/audit/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewNoop(t *testing.T) {
	noop := store.NewNoop(zap.NewNop())

	assert.NotNil(t, noop)
}

func TestNoop_SaveChange(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	noop := store.NewNoop(zap.New(core))

	event := &audit.ChangeEvent{
		ID:         "evt-1",
		Operation:  audit.OperationAdd,
		Name:       "alice",
		Value:      "friend",
		RequestID:  "req-1",
		OccurredAt: time.Now(),
	}

	err := noop.SaveChange(context.Background(), event)

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "alice", fields["name"])
	assert.Equal(t, "add", fields["operation"])
}
