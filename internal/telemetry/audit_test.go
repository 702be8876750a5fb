package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clubsync/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.clubsync", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(AuditEnvelope)
		}).
		Return(nil).Once()

	emitter := NewAuditEmitter(publisher, "audit.clubsync", "clubsync", "test")
	emitter.Emit(context.Background(), "INFO", "channel state: connected", "u1")

	publisher.AssertExpectations(t)
	require.Equal(t, 1, captured.SchemaVersion)
	require.Equal(t, "audit_log", captured.EventType)
	require.Equal(t, "clubsync", captured.Service)
	require.Equal(t, "u1", captured.UserID)
	require.Equal(t, "INFO", captured.Payload.Level)
	require.Equal(t, "channel state: connected", captured.Payload.Text)
	require.NotEmpty(t, captured.OccurredAt)
}

func TestEmitIsSafeWithoutPublisher(t *testing.T) {
	var nilEmitter *AuditEmitter
	nilEmitter.Emit(context.Background(), "INFO", "ignored", "")

	emitter := NewAuditEmitter(nil, "audit.clubsync", "clubsync", "test")
	emitter.Emit(context.Background(), "INFO", "also ignored", "")
}
