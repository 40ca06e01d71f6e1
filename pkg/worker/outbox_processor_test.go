package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/messaging"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepo) GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	return args.Get(0).([]*model.OutboxEvent), args.Error(1)
}

func (m *mockOutboxRepo) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockOutboxRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	args := m.Called(ctx)
	return args.Get(0).(*sqlx.Tx), args.Error(1)
}

func (m *mockOutboxRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return m.Called(ctx, tx, id, status, errorMessage, retryAt).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type failingBroker struct {
	messaging.Broker
}

func (failingBroker) Publish(context.Context, string, interface{}) error {
	return errors.New("redis unavailable")
}

func newTx(t *testing.T) *sqlx.Tx {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
	tx, err := sqlx.NewDb(db, "postgres").Beginx()
	require.NoError(t, err)
	return tx
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		Channel:       "odontogram.events",
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		Retention:     24 * time.Hour,
	}
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(new(mockOutboxRepo), messaging.NewMemoryBroker(), cfg, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Channel = ""
	_, err = NewOutboxProcessor(new(mockOutboxRepo), messaging.NewMemoryBroker(), cfg, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	repo := new(mockOutboxRepo)
	broker := messaging.NewMemoryBroker()
	m := metrics.NewNop()
	tx := newTx(t)
	evt := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventFindingRegistered, Payload: json.RawMessage(`{"hallazgo_id":3}`)}

	repo.On("BeginTx", mock.Anything).Return(tx, nil)
	repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return([]*model.OutboxEvent{evt}, nil)
	repo.On("UpdateStatusTx", mock.Anything, tx, evt.ID, model.OutboxStatusProcessed, (*string)(nil), (*time.Time)(nil)).Return(nil)
	repo.On("CountPending", mock.Anything).Return(0, nil)

	p, err := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), m)
	require.NoError(t, err)
	require.NoError(t, p.ProcessBatch(context.Background()))

	repo.AssertExpectations(t)
	published := broker.Published("odontogram.events")
	require.Len(t, published, 1)
	var msg messaging.Message
	require.NoError(t, json.Unmarshal(published[0], &msg))
	assert.Equal(t, evt.ID.String(), msg.ID)
	assert.JSONEq(t, `{"hallazgo_id":3}`, string(msg.Payload))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatchSchedulesRetry(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		retryCount int
		status     model.OutboxStatus
		retryAt    *time.Time
	}{
		{"first failure backs off", 0, model.OutboxStatusFailed, timePtr(now.Add(time.Minute))},
		{"second failure backs off longer", 1, model.OutboxStatusFailed, timePtr(now.Add(2 * time.Minute))},
		{"last attempt gives up", 2, model.OutboxStatusDead, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockOutboxRepo)
			tx := newTx(t)
			evt := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventToothReset, Payload: json.RawMessage(`{}`), RetryCount: tt.retryCount}

			repo.On("BeginTx", mock.Anything).Return(tx, nil)
			repo.On("GetPendingEventsWithLock", mock.Anything, tx, 10).Return([]*model.OutboxEvent{evt}, nil)
			repo.On("UpdateStatusTx", mock.Anything, tx, evt.ID, tt.status, mock.AnythingOfType("*string"), tt.retryAt).Return(nil)
			repo.On("CountPending", mock.Anything).Return(1, nil)

			m := metrics.NewNop()
			p, err := NewOutboxProcessor(repo, failingBroker{}, testConfig(), logger.Nop(), m)
			require.NoError(t, err)
			p.now = func() time.Time { return now }

			require.NoError(t, p.ProcessBatch(context.Background()))
			repo.AssertExpectations(t)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxQueueSize))
		})
	}
}

func TestCleanupDeletesOlderThanRetention(t *testing.T) {
	now := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	repo := new(mockOutboxRepo)
	repo.On("DeleteProcessedBefore", mock.Anything, now.Add(-24*time.Hour)).Return(int64(2), nil)

	p, err := NewOutboxProcessor(repo, messaging.NewMemoryBroker(), testConfig(), logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	p.now = func() time.Time { return now }

	require.NoError(t, p.Cleanup(context.Background()))
	repo.AssertExpectations(t)
}

func timePtr(t time.Time) *time.Time { return &t }
