// Package progress tracks per-upload pipeline state in a concurrent
// map keyed by correlation id. The ingestion controller is the sole
// writer for a given id; any number of push-stream observers read
// snapshots concurrently.
package progress

import "sync"

// Stage is one step of the upload pipeline. Stages advance linearly
// with Error reachable from any non-terminal stage.
type Stage string

const (
	StageReceiving  Stage = "receiving"
	StageValidating Stage = "validating"
	StageConverting Stage = "converting"
	StageUploading  Stage = "uploading"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

var stageRank = map[Stage]int{
	StageReceiving:  0,
	StageValidating: 1,
	StageConverting: 2,
	StageUploading:  3,
	StageDone:       4,
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Snapshot is a point-in-time copy of one upload's progress.
type Snapshot struct {
	Stage         Stage  `json:"stage"`
	BytesReceived int64  `json:"bytes_received"`
	TotalExpected *int64 `json:"total_expected"`
	Message       string `json:"message,omitempty"`
}

// Tracker is a concurrent correlation-id → progress map. Safe for
// concurrent insert, read, and remove.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]Snapshot)}
}

// Start registers a fresh record in StageReceiving. Observers opening
// a stream after Start never miss the record.
func (t *Tracker) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = Snapshot{Stage: StageReceiving}
}

// SetTotal records the expected payload size if the caller declared one.
func (t *Tracker) SetTotal(id string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.TotalExpected = &total
	t.records[id] = rec
}

// AddBytes bumps the received byte count. Counts are monotonic, a
// non-positive delta is a no-op.
func (t *Tracker) AddBytes(id string, n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.BytesReceived += n
	t.records[id] = rec
}

// SetStage advances the record to stage. Transitions never regress: a
// stage at or below the current one, or any write after a terminal
// stage, is ignored.
func (t *Tracker) SetStage(id string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.Stage.Terminal() {
		return
	}
	if stageRank[stage] <= stageRank[rec.Stage] {
		return
	}
	rec.Stage = stage
	rec.Message = ""
	t.records[id] = rec
}

// Fail moves the record to StageError with a message. A record already
// terminal keeps its first outcome.
func (t *Tracker) Fail(id, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.Stage.Terminal() {
		return
	}
	rec.Stage = StageError
	rec.Message = message
	t.records[id] = rec
}

// Done marks the record complete with an optional informational message.
func (t *Tracker) Done(id, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.Stage.Terminal() {
		return
	}
	rec.Stage = StageDone
	rec.Message = message
	t.records[id] = rec
}

// Get returns a snapshot copy of the record.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// Remove evicts the record.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}
