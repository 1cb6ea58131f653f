package journal

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/vinayprograms/agentcore/errors"
	"github.com/vinayprograms/agentcore/logging"
	"github.com/vinayprograms/agentcore/state"
	"github.com/vinayprograms/agentcore/task"
)

const keyPrefix = "tasks."

// Journal errors.
var (
	ErrNotFound = stderrors.New("task not in journal")
	ErrClosed   = stderrors.New("journal closed")
	ErrNoIndex  = stderrors.New("journal search index disabled")
)

// Journal records terminal tasks into a StateStore and, optionally, a
// full-text index.
type Journal struct {
	store  state.StateStore
	ttl    time.Duration
	logger *logging.Logger

	mu     sync.RWMutex
	index  bleve.Index
	closed atomic.Bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithTTL expires records after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithIndex enables the in-memory search index.
func WithIndex() Option {
	return func(j *Journal) {
		j.index = nil
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err == nil {
			j.index = idx
		} else {
			j.logger.Error("journal index unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
}

// New creates a journal over store. The journal does not own the store.
func New(store state.StateStore, opts ...Option) *Journal {
	j := &Journal{
		store:  store,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Indexed reports whether Search is available.
func (j *Journal) Indexed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.index != nil
}

// taskDocument is what the index stores for a task.
type taskDocument struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
	Params    string    `json:"params"`
	UpdatedAt time.Time `json:"updated_at"`
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	keyword := bleve.NewKeywordFieldMapping()

	doc.AddFieldMappingsAt("type", keyword)
	doc.AddFieldMappingsAt("status", keyword)
	doc.AddFieldMappingsAt("code", keyword)
	doc.AddFieldMappingsAt("error", text)
	doc.AddFieldMappingsAt("params", text)
	doc.AddFieldMappingsAt("updated_at", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// Record stores a terminal task. Recording the same task again overwrites
// the previous record.
func (j *Journal) Record(ctx context.Context, tc *task.Context) error {
	if tc == nil {
		return errors.Contract(errors.ErrCodeInvalidTask, "cannot record a nil task")
	}
	if j.closed.Load() {
		return ErrClosed
	}
	rec := tc.Snapshot()
	if !rec.Status.IsTerminal() {
		return errors.Contract(errors.ErrCodeInvalidTask,
			fmt.Sprintf("task %s is %s; only terminal tasks are recorded", rec.ID, rec.Status),
			errors.WithTaskID(rec.ID))
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode task record", errors.WithTaskID(rec.ID))
	}
	if err := j.store.Put(ctx, keyPrefix+rec.ID, data, j.ttl); err != nil {
		return storeError(err, "store task record", rec.ID)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.index == nil {
		return nil
	}
	if err := j.index.Index(rec.ID, document(rec)); err != nil {
		return errors.Wrap(err, "index task record", errors.WithTaskID(rec.ID))
	}
	return nil
}

func document(rec task.Record) taskDocument {
	doc := taskDocument{
		Type:      rec.Type,
		Status:    rec.Status.String(),
		Params:    rec.Params.Text(),
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Error != nil {
		doc.Code = rec.Error.Code().String()
		doc.Error = rec.Error.Message()
	}
	return doc
}

// Get returns the record for a task id.
func (j *Journal) Get(ctx context.Context, id string) (task.Record, error) {
	if j.closed.Load() {
		return task.Record{}, ErrClosed
	}
	data, err := j.store.Get(ctx, keyPrefix+id)
	if stderrors.Is(err, state.ErrNotFound) {
		return task.Record{}, ErrNotFound
	}
	if err != nil {
		return task.Record{}, storeError(err, "load task record", id)
	}
	var rec task.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return task.Record{}, errors.Wrap(err, "decode task record", errors.WithTaskID(id))
	}
	return rec, nil
}

// Load rebuilds the task for id. The rebuilt task is terminal and can not
// be executed again.
func (j *Journal) Load(ctx context.Context, id string) (*task.Context, error) {
	rec, err := j.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return task.FromRecord(rec)
}

// List returns the recorded tasks with the given status, oldest update
// first. An empty status lists every record.
func (j *Journal) List(ctx context.Context, status task.Status) ([]task.Record, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	keys, err := j.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, storeError(err, "list task records", "")
	}

	var out []task.Record
	for _, key := range keys {
		rec, err := j.Get(ctx, strings.TrimPrefix(key, keyPrefix))
		if stderrors.Is(err, ErrNotFound) {
			continue // expired between Keys and Get
		}
		if err != nil {
			return nil, err
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].UpdatedAt.Equal(out[b].UpdatedAt) {
			return out[a].UpdatedAt.Before(out[b].UpdatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Search runs a bleve query string over the index and returns matching
// records by relevance. Fields type, status and code match exactly; error
// and params are analyzed text:
//
//	status:failed timeout
//	type:llm.chat +code:PANIC
//
// An empty query matches every indexed task. Records whose store entry
// has expired are dropped from the index and skipped.
func (j *Journal) Search(ctx context.Context, q string, limit int) ([]task.Record, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}

	j.mu.RLock()
	idx := j.index
	j.mu.RUnlock()
	if idx == nil {
		return nil, ErrNoIndex
	}

	var bq query.Query = bleve.NewMatchAllQuery()
	if strings.TrimSpace(q) != "" {
		bq = bleve.NewQueryStringQuery(q)
	}
	req := bleve.NewSearchRequest(bq)
	req.Size = limit

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]task.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, err := j.Get(ctx, hit.ID)
		if stderrors.Is(err, ErrNotFound) {
			if derr := idx.Delete(hit.ID); derr != nil {
				j.logger.Warn("journal index prune failed", map[string]interface{}{
					"task_id": hit.ID,
					"error":   derr.Error(),
				})
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reindex rebuilds the search index from the records in the store and
// returns how many were indexed. The rebuilt index replaces the old one,
// so documents whose records have expired are dropped.
func (j *Journal) Reindex(ctx context.Context) (int, error) {
	if j.closed.Load() {
		return 0, ErrClosed
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.index == nil {
		return 0, ErrNoIndex
	}

	recs, err := j.List(ctx, "")
	if err != nil {
		return 0, err
	}

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return 0, errors.Wrap(err, "create search index")
	}
	batch := fresh.NewBatch()
	for _, rec := range recs {
		if err := batch.Index(rec.ID, document(rec)); err != nil {
			fresh.Close()
			return 0, errors.Wrap(err, "index task record", errors.WithTaskID(rec.ID))
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return 0, errors.Wrap(err, "apply index batch")
	}

	old := j.index
	j.index = fresh
	if err := old.Close(); err != nil {
		j.logger.Warn("closing replaced journal index failed", map[string]interface{}{"error": err.Error()})
	}
	return len(recs), nil
}

// Close releases the index. The store is left open.
func (j *Journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.index == nil {
		return nil
	}
	err := j.index.Close()
	j.index = nil
	return err
}

func storeError(err error, msg, taskID string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, msg, errors.WithTaskID(taskID))
	}
	return errors.WrapWithCode(err, errors.ErrCodeUnavailable, msg, errors.WithTaskID(taskID))
}
