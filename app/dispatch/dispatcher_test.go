package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"newsherald/app/database"
	"newsherald/app/platform"
	"newsherald/app/render"
)

type fakeQueue struct {
	mu        sync.Mutex
	pending   []database.QueueJob
	released  []int64
	completed []int64
	retried   map[int64]string
	failed    map[int64]string
	stopped   map[int64]database.JobStatus
}

func newFakeQueue(jobs ...database.QueueJob) *fakeQueue {
	return &fakeQueue{
		pending: jobs,
		retried: make(map[int64]string),
		failed:  make(map[int64]string),
		stopped: make(map[int64]database.JobStatus),
	}
}

func (f *fakeQueue) EnqueueBatch(jobs []database.QueueJob) (int, error) { return len(jobs), nil }

func (f *fakeQueue) Claim(limit int) ([]database.QueueJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	claimed := f.pending[:limit]
	f.pending = f.pending[limit:]
	return claimed, nil
}

func (f *fakeQueue) Release(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return nil
}

func (f *fakeQueue) MarkCompleted(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) MarkRetry(id int64, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried[id] = errorMessage
	return nil
}

func (f *fakeQueue) MarkFailed(id int64, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeQueue) MarkStopped(id int64, status database.JobStatus, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped[id] = status
	return nil
}

func (f *fakeQueue) ResetStale(olderThan time.Duration) (int64, error)    { return 0, nil }
func (f *fakeQueue) PurgeTerminal(olderThan time.Duration) (int64, error) { return 0, nil }
func (f *fakeQueue) Stats() (*database.QueueStats, error)                 { return &database.QueueStats{}, nil }
func (f *fakeQueue) ListTerminalFailures(limit int) ([]database.QueueJob, error) {
	return nil, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	inserted []database.PostedMessage
	deleted  []string
}

func (f *fakeLedger) Insert(m *database.PostedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, *m)
	return nil
}

func (f *fakeLedger) ListRichFormat(category string, newsItemID int64) ([]database.PostedMessage, error) {
	return nil, nil
}
func (f *fakeLedger) DeleteByGuild(guildID string) (int64, error) { return 0, nil }

func (f *fakeLedger) DeleteByMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

type fakeClient struct {
	mu      sync.Mutex
	sendErr error
	editErr error
	sent    []string
	edited  []string
}

func (f *fakeClient) FetchGuild(ctx context.Context, guildID string) error     { return nil }
func (f *fakeClient) FetchChannel(ctx context.Context, channelID string) error { return nil }

func (f *fakeClient) SendMessage(ctx context.Context, channelID string, msg *render.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, channelID)
	return "msg-" + channelID, nil
}

func (f *fakeClient) EditMessage(ctx context.Context, channelID, messageID string, msg *render.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, messageID)
	return nil
}

func testAccent(category string) *int {
	accent := 0x3b88c3
	return &accent
}

func testConfig() Config {
	return Config{
		Concurrency: 4,
		MaxAttempts: 3,
		FastTick:    time.Millisecond,
		SlowTick:    10 * time.Millisecond,
		StaleAfter:  time.Minute,
	}
}

func testJob(id int64, jobType database.JobType) database.QueueJob {
	payload, _ := json.Marshal(render.Payload{
		Category:    "topic",
		Title:       "Patch Notes 7.2",
		Link:        "https://example.com/patch",
		Date:        time.Now(),
		Description: "Assorted fixes.",
	})
	return database.QueueJob{
		ID:         id,
		Type:       jobType,
		Category:   "topic",
		NewsItemID: id,
		GuildID:    "g1",
		ChannelID:  "c1",
		MessageID:  "m1",
		Status:     database.StatusProcessing,
		Payload:    payload,
	}
}

func runTick(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.tick(context.Background())
	d.wg.Wait()
}

func TestDispatcher_SendRecordsLedgerAndCompletes(t *testing.T) {
	queue := newFakeQueue(testJob(1, database.JobSend))
	ledger := &fakeLedger{}
	client := &fakeClient{}
	d := New(queue, ledger, client, testAccent, testConfig())

	runTick(t, d)

	if len(queue.completed) != 1 || queue.completed[0] != 1 {
		t.Fatalf("Expected job 1 completed, got %v", queue.completed)
	}
	if len(client.sent) != 1 {
		t.Fatalf("Expected exactly one send, got %d", len(client.sent))
	}
	if len(ledger.inserted) != 1 {
		t.Fatalf("Successful send must be recorded in the ledger")
	}
	if !ledger.inserted[0].RichFormat {
		t.Errorf("Dispatcher sends are rich format")
	}
	if ledger.inserted[0].MessageID == "" {
		t.Errorf("Ledger row must carry the platform message id")
	}
}

func TestDispatcher_UpdateEditsInPlace(t *testing.T) {
	queue := newFakeQueue(testJob(1, database.JobUpdate))
	ledger := &fakeLedger{}
	client := &fakeClient{}
	d := New(queue, ledger, client, testAccent, testConfig())

	runTick(t, d)

	if len(client.edited) != 1 || client.edited[0] != "m1" {
		t.Fatalf("Expected edit of message m1, got %v", client.edited)
	}
	if len(client.sent) != 0 {
		t.Errorf("Update jobs must not send new messages")
	}
	if len(ledger.inserted) != 0 {
		t.Errorf("Edits must not add ledger rows")
	}
	if len(queue.completed) != 1 {
		t.Errorf("Expected update job completed, got %v", queue.completed)
	}
}

func TestDispatcher_PermanentErrorStopsWithoutRetry(t *testing.T) {
	queue := newFakeQueue(testJob(1, database.JobSend))
	client := &fakeClient{sendErr: platform.ErrMissingPermissions}
	d := New(queue, &fakeLedger{}, client, testAccent, testConfig())

	runTick(t, d)

	if status := queue.stopped[1]; status != database.StatusStoppedMissingPermissions {
		t.Errorf("Expected STOPPED_MISSING_PERMISSIONS, got %q", status)
	}
	if len(queue.retried) != 0 {
		t.Errorf("Permanent errors must not be retried")
	}
	if len(queue.failed) != 0 {
		t.Errorf("Permanent errors stop, not fail: %v", queue.failed)
	}
}

func TestDispatcher_TransientErrorRetriesThenFails(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("connection reset")}

	job := testJob(1, database.JobSend)
	queue := newFakeQueue(job)
	d := New(queue, &fakeLedger{}, client, testAccent, testConfig())
	runTick(t, d)

	if _, ok := queue.retried[1]; !ok {
		t.Fatalf("First failure must schedule a retry")
	}

	// Final attempt: retry count has reached MaxAttempts-1.
	job.RetryCount = 2
	queue = newFakeQueue(job)
	d = New(queue, &fakeLedger{}, client, testAccent, testConfig())
	runTick(t, d)

	if _, ok := queue.failed[1]; !ok {
		t.Fatalf("Exhausted attempts must mark the job FAILED")
	}
	if len(queue.retried) != 0 {
		t.Errorf("No retry beyond the attempt cap")
	}
}

func TestDispatcher_UnknownMessageDropsLedgerRow(t *testing.T) {
	queue := newFakeQueue(testJob(1, database.JobUpdate))
	ledger := &fakeLedger{}
	client := &fakeClient{editErr: platform.ErrUnknownMessage}
	d := New(queue, ledger, client, testAccent, testConfig())

	runTick(t, d)

	if len(ledger.deleted) != 1 || ledger.deleted[0] != "m1" {
		t.Errorf("Deleted target message must be dropped from the ledger, got %v", ledger.deleted)
	}
	if _, ok := queue.failed[1]; !ok {
		t.Errorf("Edit of a deleted message is terminal")
	}
	if len(queue.retried) != 0 {
		t.Errorf("Edit of a deleted message must not be retried")
	}
}

func TestDispatcher_MalformedPayloadFailsWithoutSend(t *testing.T) {
	job := testJob(1, database.JobSend)
	job.Payload = []byte("{not json")
	queue := newFakeQueue(job)
	client := &fakeClient{}
	d := New(queue, &fakeLedger{}, client, testAccent, testConfig())

	runTick(t, d)

	if _, ok := queue.failed[1]; !ok {
		t.Fatalf("Malformed payload must fail the job")
	}
	if len(client.sent) != 0 {
		t.Errorf("Nothing must be sent for a malformed payload")
	}
	if len(queue.retried) != 0 {
		t.Errorf("Malformed payload must not be retried; the snapshot cannot change")
	}
}

func TestDispatcher_MissingAccentFailsJob(t *testing.T) {
	queue := newFakeQueue(testJob(1, database.JobSend))
	client := &fakeClient{}
	noAccent := func(category string) *int { return nil }
	d := New(queue, &fakeLedger{}, client, noAccent, testConfig())

	runTick(t, d)

	if _, ok := queue.failed[1]; !ok {
		t.Fatalf("Unrenderable job must be marked FAILED")
	}
	if len(client.sent) != 0 {
		t.Errorf("Nothing must be sent without a renderable message")
	}
}

func TestDispatcher_RateLimitDefersWithoutPenalty(t *testing.T) {
	jobs := []database.QueueJob{
		testJob(1, database.JobSend),
		testJob(2, database.JobSend),
		testJob(3, database.JobSend),
	}
	queue := newFakeQueue(jobs...)
	client := &fakeClient{}

	cfg := testConfig()
	cfg.RatePerWindow = 2
	cfg.RateWindow = time.Minute
	d := New(queue, &fakeLedger{}, client, testAccent, cfg)

	runTick(t, d)

	if len(queue.completed) != 2 {
		t.Fatalf("Expected 2 sends within the window, got %d", len(queue.completed))
	}
	if len(queue.released) != 1 || queue.released[0] != 3 {
		t.Fatalf("Job over the cap must be released back to pending, got %v", queue.released)
	}
	if len(queue.retried) != 0 || len(queue.failed) != 0 {
		t.Errorf("Deferral must not touch retry or failure state")
	}
}

func TestDispatcher_ClaimRespectsFreeSlots(t *testing.T) {
	var jobs []database.QueueJob
	for i := int64(1); i <= 10; i++ {
		jobs = append(jobs, testJob(i, database.JobSend))
	}
	queue := newFakeQueue(jobs...)

	cfg := testConfig()
	cfg.Concurrency = 3
	d := New(queue, &fakeLedger{}, &fakeClient{}, testAccent, cfg)

	d.tick(context.Background())
	d.wg.Wait()

	queue.mu.Lock()
	remaining := len(queue.pending)
	queue.mu.Unlock()
	if remaining != 7 {
		t.Errorf("A tick claims at most Concurrency jobs; %d left pending", remaining)
	}
}
