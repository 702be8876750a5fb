package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clubsync/internal/alerts"
	"clubsync/internal/models"
	"clubsync/internal/rooms"
)

type ClubAPIMock struct {
	mock.Mock
}

func (m *ClubAPIMock) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var list []models.Room
	if val := args.Get(0); val != nil {
		list = val.([]models.Room)
	}
	return list, args.Error(1)
}

func (m *ClubAPIMock) ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ClubAPIMock) SendMessage(ctx context.Context, roomID, clientID, content string) (models.Message, error) {
	args := m.Called(ctx, roomID, clientID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ClubAPIMock) JoinRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *ClubAPIMock) LeaveRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *ClubAPIMock) MarkRead(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) Subscribe(topic string) {
	m.Called(topic)
}

func (m *ChannelMock) Unsubscribe(topic string) {
	m.Called(topic)
}

type TypingSenderMock struct {
	mock.Mock
}

func (m *TypingSenderMock) SendTyping(roomID string, isTyping bool) error {
	args := m.Called(roomID, isTyping)
	return args.Error(0)
}

type PaymentSourceMock struct {
	mock.Mock
}

func (m *PaymentSourceMock) ListPendingPayments(ctx context.Context) ([]models.PendingPayment, error) {
	args := m.Called(ctx)
	var list []models.PendingPayment
	if val := args.Get(0); val != nil {
		list = val.([]models.PendingPayment)
	}
	return list, args.Error(1)
}

type EventSourceMock struct {
	mock.Mock
}

func (m *EventSourceMock) ListActiveEvents(ctx context.Context) ([]models.PollEvent, error) {
	args := m.Called(ctx)
	var list []models.PollEvent
	if val := args.Get(0); val != nil {
		list = val.([]models.PollEvent)
	}
	return list, args.Error(1)
}

var _ rooms.API = (*ClubAPIMock)(nil)
var _ rooms.Channel = (*ChannelMock)(nil)
var _ alerts.PaymentSource = (*PaymentSourceMock)(nil)
var _ alerts.EventSource = (*EventSourceMock)(nil)
