package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/birbparty/pokenest/internal/cache"
	"github.com/birbparty/pokenest/internal/database"
	"github.com/birbparty/pokenest/internal/database/dbtest"
	"github.com/birbparty/pokenest/internal/pokeapitest"
	"github.com/birbparty/pokenest/internal/queue"
	"github.com/birbparty/pokenest/sdk"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	subject   string
	data      []byte
	delivered uint64

	mu      sync.Mutex
	outcome string
}

func newDelivery(subject string, msg interface{ Marshal() ([]byte, error) }, delivered uint64) *fakeDelivery {
	data, err := msg.Marshal()
	if err != nil {
		panic(err)
	}
	return &fakeDelivery{subject: subject, data: data, delivered: delivered}
}

func (f *fakeDelivery) Subject() string                             { return f.subject }
func (f *fakeDelivery) Data() []byte                                { return f.data }
func (f *fakeDelivery) Header() nats.Header                         { return nil }
func (f *fakeDelivery) NumDelivered() uint64                        { return f.delivered }
func (f *fakeDelivery) Context(ctx context.Context) context.Context { return ctx }
func (f *fakeDelivery) Ack() error                                  { return f.settle("ack") }
func (f *fakeDelivery) Nak(time.Duration) error                     { return f.settle("nak") }
func (f *fakeDelivery) Term() error                                 { return f.settle("term") }

func (f *fakeDelivery) settle(outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome != "" {
		panic("delivery settled twice")
	}
	f.outcome = outcome
	return nil
}

func (f *fakeDelivery) Outcome() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

type fakeDLQ struct {
	mu     sync.Mutex
	causes []error
	fail   error
}

func (f *fakeDLQ) SendToDLQ(ctx context.Context, d queue.Delivery, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.causes = append(f.causes, cause)
	return nil
}

func (f *fakeDLQ) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.causes)
}

type fixture struct {
	db    *dbtest.MockDatabase
	cache *cache.ResourceCache
	dlq   *fakeDLQ
	bp    *BatchProcessor
	srv   *pokeapitest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := pokeapitest.New(t)
	client, err := sdk.NewClient(sdk.DefaultConfig().WithBaseURL(srv.BaseURL()).WithRetries(0))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		db:    new(dbtest.MockDatabase),
		cache: cache.NewResourceCache(cache.NewMemoryCache(100, time.Hour, time.Hour), "test", 0, 0),
		dlq:   &fakeDLQ{},
		srv:   srv,
	}
	cfg := &Config{
		ProcessingConcurrency: 4,
		RehydrationBatchSize:  2,
		MessageTimeout:        5 * time.Second,
		PrefetchConcurrency:   2,
	}
	qcfg := queue.DefaultConfig()
	f.bp = NewBatchProcessor(cfg, qcfg, f.db, f.cache, client, f.dlq, NewMetrics())
	return f
}

func deliveries(ds ...*fakeDelivery) []queue.Delivery {
	out := make([]queue.Delivery, len(ds))
	for i, d := range ds {
		out[i] = d
	}
	return out
}

func TestProcessPersistBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good1 := newDelivery(queue.SubjectPersist, queue.NewPersistMessage("pokemon", "25", json.RawMessage(`{"id":25}`), ""), 1)
	good2 := newDelivery(queue.SubjectPersist, queue.NewPersistMessage("type", "fire", json.RawMessage(`{"id":10}`), ""), 1)
	invalid := &fakeDelivery{subject: queue.SubjectPersist, data: []byte(`{"endpoint":"pokemon"}`), delivered: 1}

	f.db.On("PutResources", mock.Anything, mock.MatchedBy(func(rs []*database.Resource) bool {
		return len(rs) == 2 && rs[0].ResourceID == "25" && rs[1].Endpoint == "type"
	})).Return(map[string]error{}, nil).Once()

	f.bp.ProcessPersistBatch(ctx, deliveries(good1, invalid, good2))

	assert.Equal(t, "ack", good1.Outcome())
	assert.Equal(t, "ack", good2.Outcome())
	assert.Equal(t, "term", invalid.Outcome())
	require.Equal(t, 1, f.dlq.count())
	assert.True(t, queue.IsPermanent(f.dlq.causes[0]))
	f.db.AssertExpectations(t)
}

func TestProcessPersistBatch_Rejected(t *testing.T) {
	f := newFixture(t)

	d := newDelivery(queue.SubjectPersist, queue.NewPersistMessage("pokemon", "1", json.RawMessage(`"scalar"`), ""), 1)
	f.db.On("PutResources", mock.Anything, mock.Anything).
		Return(map[string]error{"pokemon/1": database.ErrInvalidDocument}, nil)

	f.bp.ProcessPersistBatch(context.Background(), deliveries(d))

	assert.Equal(t, "term", d.Outcome())
	require.Equal(t, 1, f.dlq.count())
	assert.ErrorIs(t, f.dlq.causes[0], database.ErrInvalidDocument)
}

func TestProcessPersistBatch_WriteFailure(t *testing.T) {
	tests := []struct {
		name      string
		delivered uint64
		want      string
		wantDLQ   int
	}{
		{"redelivered while attempts remain", 1, "nak", 0},
		{"dead-lettered on last attempt", 3, "term", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := newDelivery(queue.SubjectPersist, queue.NewPersistMessage("pokemon", "1", json.RawMessage(`{}`), ""), tt.delivered)
			f.db.On("PutResources", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

			f.bp.ProcessPersistBatch(context.Background(), deliveries(d))

			assert.Equal(t, tt.want, d.Outcome())
			assert.Equal(t, tt.wantDLQ, f.dlq.count())
		})
	}
}

func TestSettle_DLQUnavailable(t *testing.T) {
	f := newFixture(t)
	f.dlq.fail = errors.New("nats down")

	d := &fakeDelivery{subject: queue.SubjectPersist, data: []byte(`garbage`), delivered: 1}
	f.bp.ProcessPersistBatch(context.Background(), deliveries(d))

	assert.Equal(t, "nak", d.Outcome())
}

func TestProcessRehydrateBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored := &database.Resource{Endpoint: "pokemon", ResourceID: "25", Body: json.RawMessage(`{"name":"pikachu"}`)}
	f.db.On("GetResource", mock.Anything, "pokemon", "25").Return(stored, nil).Once()
	f.db.On("GetResource", mock.Anything, "pokemon", "999").Return(nil, database.ErrNotFound).Once()
	f.db.On("GetResource", mock.Anything, "type", "fire").Return(nil, errors.New("timeout")).Once()

	a := newDelivery(queue.SubjectRehydrate, queue.NewRehydrateMessage("pokemon", "25", queue.PriorityLow), 1)
	dup := newDelivery(queue.SubjectRehydrate, queue.NewRehydrateMessage("pokemon", "25", queue.PriorityUrgent), 1)
	missing := newDelivery(queue.SubjectRehydrate, queue.NewRehydrateMessage("pokemon", "999", queue.PriorityNormal), 1)
	broken := newDelivery(queue.SubjectRehydrate, queue.NewRehydrateMessage("type", "fire", queue.PriorityNormal), 1)

	f.bp.ProcessRehydrateBatch(ctx, deliveries(a, missing, dup, broken))

	assert.Equal(t, "ack", a.Outcome())
	assert.Equal(t, "ack", dup.Outcome())
	assert.Equal(t, "ack", missing.Outcome())
	assert.Equal(t, "nak", broken.Outcome())

	body, err := f.cache.Get(ctx, cache.Ref{Endpoint: "pokemon", ID: "25"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"pikachu"}`, string(body))
	f.db.AssertExpectations(t)
}

func TestProcessPrefetchBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.db.On("PutResource", mock.Anything, mock.MatchedBy(func(r *database.Resource) bool {
		return r.Endpoint == "pokemon" && r.ResourceID == "pikachu" && r.Source == database.SourcePrefetch
	})).Return(nil).Once()

	d := newDelivery(queue.SubjectPrefetch, queue.NewPrefetchMessage("pokemon", "pikachu", []string{"species"}, 1), 1)
	f.bp.ProcessPrefetchBatch(ctx, deliveries(d))

	require.Equal(t, "ack", d.Outcome())
	ref := cache.Ref{Endpoint: "pokemon", ID: "pikachu"}

	raw, err := f.cache.Get(ctx, ref)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"pikachu"`)

	expanded, err := f.cache.GetExpanded(ctx, ref, []string{"species"}, 1)
	require.NoError(t, err)
	assert.Contains(t, string(expanded), `"capture_rate"`)
	assert.Equal(t, 1, f.srv.Hits("/pokemon-species/pikachu"))
	f.db.AssertExpectations(t)
}

func TestProcessPrefetchBatch_NotFound(t *testing.T) {
	f := newFixture(t)

	d := newDelivery(queue.SubjectPrefetch, queue.NewPrefetchMessage("pokemon", "missingno", nil, 0), 1)
	f.bp.ProcessPrefetchBatch(context.Background(), deliveries(d))

	assert.Equal(t, "term", d.Outcome())
	require.Equal(t, 1, f.dlq.count())
	assert.True(t, sdk.IsNotFound(f.dlq.causes[0]))
	f.db.AssertNotCalled(t, "PutResource", mock.Anything, mock.Anything)
}

func TestRehydrateAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.db.On("ListResourceIDs", mock.Anything, "", 0, 2).Return([]string{"pokemon/1", "pokemon/4"}, nil)
	f.db.On("ListResourceIDs", mock.Anything, "", 2, 2).Return([]string{"type/fire"}, nil)
	f.db.On("GetResource", mock.Anything, "pokemon", "1").Return(&database.Resource{Body: json.RawMessage(`{"id":1}`)}, nil)
	f.db.On("GetResource", mock.Anything, "pokemon", "4").Return(&database.Resource{Body: json.RawMessage(`{"id":4}`)}, nil)
	f.db.On("GetResource", mock.Anything, "type", "fire").Return(&database.Resource{Body: json.RawMessage(`{"id":10}`)}, nil)

	n, err := f.bp.RehydrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	found, err := f.cache.GetMany(ctx, []cache.Ref{{Endpoint: "pokemon", ID: "1"}, {Endpoint: "type", ID: "fire"}})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	stats := f.bp.metrics.GetStats()
	assert.Equal(t, int64(3), stats.BulkRehydrated)
}

func TestMetricsStats(t *testing.T) {
	m := NewMetrics()
	m.RecordSuccess(queue.MessageTypePersist, time.Millisecond)
	m.RecordSuccess(queue.MessageTypePersist, time.Millisecond)
	m.RecordFailure(queue.MessageTypeRehydrate, "timeout", time.Millisecond)
	m.RecordBatch(queue.MessageTypePersist, 4, 10*time.Millisecond)
	m.RecordBatch(queue.MessageTypePersist, 2, 20*time.Millisecond)

	s := m.GetStats()
	assert.Equal(t, int64(2), s.MessagesSucceeded["persist"])
	assert.Equal(t, int64(1), s.MessagesFailed["rehydrate"])
	assert.Equal(t, int64(1), s.ErrorCounts["timeout"])
	assert.Equal(t, 3.0, s.AvgBatchSize)
	assert.Equal(t, 15.0, s.AvgBatchTimeMs)
	assert.True(t, s.Healthy)

	m.SetHealthy(false)
	assert.False(t, m.IsHealthy())
}
