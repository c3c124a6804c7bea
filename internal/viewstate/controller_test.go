package viewstate

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Joseda-hg/clutchdesk/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway stores employees in memory. A List call can be held open by
// queueing a gate; the call blocks until the gate is released.
type fakeGateway struct {
	mu      sync.Mutex
	records []model.Employee
	nextID  int
	err     error
	gates   []chan struct{}
	creates int
}

func (f *fakeGateway) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates = append(f.gates, gate)
	return gate
}

func (f *fakeGateway) waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gates)
}

func (f *fakeGateway) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGateway) List(ctx context.Context, params url.Values) ([]model.Employee, error) {
	f.mu.Lock()
	var gate chan struct{}
	if len(f.gates) > 0 {
		gate = f.gates[0]
		f.gates = f.gates[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.records), nil
}

func (f *fakeGateway) Create(ctx context.Context, record model.Employee) (model.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.err != nil {
		return model.Employee{}, f.err
	}
	f.nextID++
	record.ID = string(rune('a' + f.nextID - 1))
	if record.Status == "" {
		record.Status = "active"
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeGateway) Update(ctx context.Context, id string, patch map[string]any) (model.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Employee{}, f.err
	}
	for i, record := range f.records {
		if record.ID != id {
			continue
		}
		if status, ok := patch["status"].(string); ok {
			record.Status = status
		}
		if email, ok := patch["email"].(string); ok {
			record.Email = email
		}
		f.records[i] = record
		return record, nil
	}
	return model.Employee{}, errors.New("not found")
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = slices.DeleteFunc(f.records, func(e model.Employee) bool { return e.ID == id })
	return nil
}

func newTestController(t *testing.T, gateway *fakeGateway) *Controller[model.Employee] {
	t.Helper()
	return New[model.Employee]("employees", gateway, Options{
		Logger:   zaptest.NewLogger(t),
		Noun:     "employee",
		Validate: model.Validate,
	})
}

// recorder keeps every snapshot a listener received.
type recorder struct {
	mu     sync.Mutex
	states []State[model.Employee]
}

func (r *recorder) record(s State[model.Employee]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State[model.Employee] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func employee(first, last, email string) model.Employee {
	return model.Employee{FirstName: first, LastName: last, Email: email}
}

func keys(items []model.Employee) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestInitialState(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	state := c.Snapshot()
	require.False(t, state.IsLoading)
	require.NotNil(t, state.Data)
	require.Empty(t, state.Data)
	require.Empty(t, state.Error)
	require.True(t, state.Settled())
}

func TestLoadPublishesLoadingThenData(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}}}
	c := newTestController(t, gw)

	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)
	defer unsubscribe()

	require.NoError(t, c.Load(context.Background(), nil))

	states := rec.all()
	require.Len(t, states, 3)
	require.False(t, states[0].IsLoading)
	require.True(t, states[1].IsLoading)
	require.Empty(t, states[1].Data)
	require.False(t, states[2].IsLoading)
	if diff := cmp.Diff(gw.records, states[2].Data); diff != "" {
		t.Fatalf("loaded data mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFailureKeepsPreviousData(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1", Email: "a@example.com"}}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))

	gw.fail(errors.New("connection refused"))
	err := c.Load(context.Background(), nil)
	require.Error(t, err)

	var intentErr *IntentError
	require.ErrorAs(t, err, &intentErr)
	require.Equal(t, "load", intentErr.Intent)

	state := c.Snapshot()
	require.False(t, state.IsLoading)
	require.Equal(t, "Failed to load employee: connection refused", state.Error)
	require.Equal(t, []string{"1"}, keys(state.Data))
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	gw := &fakeGateway{}
	c := New[model.Employee]("employees", gw, Options{Logger: zaptest.NewLogger(t), Metrics: metrics})

	slow := gw.hold()
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Load(context.Background(), nil)
	}()

	// Wait until the first load is parked inside the gateway.
	require.Eventually(t, func() bool { return gw.waiting() == 0 }, time.Second, 5*time.Millisecond)

	gw.mu.Lock()
	gw.records = []model.Employee{{ID: "fresh", Email: "fresh@example.com"}}
	gw.mu.Unlock()
	require.NoError(t, c.Load(context.Background(), nil))

	gw.mu.Lock()
	gw.records = []model.Employee{{ID: "stale", Email: "stale@example.com"}}
	gw.mu.Unlock()
	close(slow)

	require.ErrorIs(t, <-firstDone, ErrSuperseded)
	state := c.Snapshot()
	require.False(t, state.IsLoading)
	require.Equal(t, []string{"fresh"}, keys(state.Data))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.stales.WithLabelValues("employees")))
}

func TestFailedCreateDuringLoadLeavesErrorToLoad(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1", Email: "a@example.com"}}}
	c := newTestController(t, gw)

	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)
	defer unsubscribe()

	gate := gw.hold()
	loadDone := make(chan error, 1)
	go func() {
		loadDone <- c.Load(context.Background(), nil)
	}()
	require.Eventually(t, func() bool { return gw.waiting() == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, c.Snapshot().IsLoading)

	gw.fail(errors.New("duplicate email"))
	_, err := c.Create(context.Background(), employee("Grace", "Hopper", "grace@example.com"))
	var intentErr *IntentError
	require.ErrorAs(t, err, &intentErr)
	require.Equal(t, "create", intentErr.Intent)
	require.Empty(t, c.Snapshot().Error)

	gw.fail(nil)
	close(gate)
	require.NoError(t, <-loadDone)

	for _, state := range rec.all() {
		if state.IsLoading && state.Error != "" {
			t.Fatalf("version %d is both loading and failed: %q", state.Version, state.Error)
		}
	}
	final := c.Snapshot()
	require.False(t, final.IsLoading)
	require.Empty(t, final.Error)
	require.Equal(t, []string{"1"}, keys(final.Data))
}

func TestCreateThenLoadListsRecordOnce(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))

	created, err := c.Create(context.Background(), employee("Grace", "Hopper", "grace@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, []string{created.ID}, keys(c.Snapshot().Data))

	require.NoError(t, c.Load(context.Background(), nil))
	require.Equal(t, []string{created.ID}, keys(c.Snapshot().Data))
}

func TestCreateUpsertsWhenLoadAlreadyHasRecord(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	// The load lands after the server stored the record but before Create
	// returns to the controller.
	gw.records = []model.Employee{{ID: "a", FirstName: "Old", LastName: "Name", Email: "x@example.com"}}
	require.NoError(t, c.Load(context.Background(), nil))

	c.settle("create", nil, func(data []model.Employee) []model.Employee {
		return upsert(data, model.Employee{ID: "a", FirstName: "New", LastName: "Name", Email: "x@example.com"})
	})
	state := c.Snapshot()
	require.Len(t, state.Data, 1)
	require.Equal(t, "New", state.Data[0].FirstName)
}

func TestFailedCreateLeavesDataAndSetsError(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1", Email: "taken@example.com"}}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))
	before := c.Snapshot()

	gw.fail(errors.New("Email already exists"))
	_, err := c.Create(context.Background(), employee("Dup", "User", "taken@example.com"))
	require.Error(t, err)

	after := c.Snapshot()
	require.Equal(t, "Failed to create employee: Email already exists", after.Error)
	require.Equal(t, before.Data, after.Data)
	require.False(t, after.IsLoading)
}

func TestInvalidCreateNeverReachesGateway(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	_, err := c.Create(context.Background(), employee("", "Hopper", "not-an-email"))
	require.Error(t, err)
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Zero(t, gw.creates)
	require.Contains(t, c.Snapshot().Error, "Failed to create employee")
}

func TestUpdateReplacesByIdentity(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{
		{ID: "1", Email: "a@example.com", Status: "active"},
		{ID: "2", Email: "b@example.com", Status: "active"},
	}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))
	before := c.Snapshot()

	updated, err := c.Update(context.Background(), "2", map[string]any{"status": "inactive"})
	require.NoError(t, err)
	require.Equal(t, "inactive", updated.Status)

	after := c.Snapshot()
	require.Equal(t, []string{"1", "2"}, keys(after.Data))
	require.Equal(t, "inactive", after.Data[1].Status)
	// Snapshots already handed out are never mutated.
	require.Equal(t, "active", before.Data[1].Status)
}

func TestDeleteThenLoadOmitsRecord(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))
	before := c.Snapshot()

	require.NoError(t, c.Delete(context.Background(), "2"))
	require.Equal(t, []string{"1", "3"}, keys(c.Snapshot().Data))
	require.Equal(t, []string{"1", "2", "3"}, keys(before.Data))

	require.NoError(t, c.Load(context.Background(), nil))
	require.Equal(t, []string{"1", "3"}, keys(c.Snapshot().Data))
}

func TestFailedDeleteKeepsRecord(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1"}}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))

	gw.fail(errors.New("forbidden"))
	require.Error(t, c.Delete(context.Background(), "1"))
	state := c.Snapshot()
	require.Equal(t, []string{"1"}, keys(state.Data))
	require.Equal(t, "Failed to delete employee: forbidden", state.Error)
}

func TestClearErrorIsIdempotent(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1"}}}
	c := newTestController(t, gw)
	require.NoError(t, c.Load(context.Background(), nil))
	gw.fail(errors.New("boom"))
	require.Error(t, c.Delete(context.Background(), "1"))

	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)
	defer unsubscribe()

	c.ClearError()
	cleared := c.Snapshot()
	require.Empty(t, cleared.Error)
	require.Equal(t, []string{"1"}, keys(cleared.Data))

	c.ClearError()
	require.Equal(t, cleared, c.Snapshot())
	// Initial delivery plus exactly one transition.
	require.Len(t, rec.all(), 2)
}

func TestLoadClearsPreviousError(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	gw.fail(errors.New("offline"))
	require.Error(t, c.Load(context.Background(), nil))

	gw.fail(nil)
	require.NoError(t, c.Load(context.Background(), nil))
	require.Empty(t, c.Snapshot().Error)
}

func TestSubscribersSeeIncreasingVersions(t *testing.T) {
	gw := &fakeGateway{records: []model.Employee{{ID: "1"}}}
	c := newTestController(t, gw)

	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Load(context.Background(), nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrSuperseded)
			}
		}()
	}
	wg.Wait()
	unsubscribe()

	states := rec.all()
	for i := 1; i < len(states); i++ {
		require.Greater(t, states[i].Version, states[i-1].Version)
	}
	require.Equal(t, c.Snapshot().Version, states[len(states)-1].Version)
	require.False(t, c.Snapshot().IsLoading)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)
	unsubscribe()

	require.NoError(t, c.Load(context.Background(), nil))
	require.Len(t, rec.all(), 1)
}

func TestIntentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	gw := &fakeGateway{}
	c := New[model.Employee]("employees", gw, Options{Metrics: metrics})

	require.NoError(t, c.Load(context.Background(), nil))
	gw.fail(errors.New("down"))
	require.Error(t, c.Load(context.Background(), nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.intents.WithLabelValues("employees", "load", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.intents.WithLabelValues("employees", "load", "error")))
}

func TestLoadAllRunsEveryLoader(t *testing.T) {
	first := &fakeGateway{records: []model.Employee{{ID: "1"}}}
	second := &fakeGateway{err: errors.New("offline")}
	a := newTestController(t, first)
	b := newTestController(t, second)

	err := LoadAll(context.Background(), a.Loader(nil), b.Loader(nil))
	require.Error(t, err)
	require.Equal(t, []string{"1"}, keys(a.Snapshot().Data))
	require.NotEmpty(t, b.Snapshot().Error)
}
