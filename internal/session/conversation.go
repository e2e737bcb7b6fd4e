// Package session runs questions through the Generate, Execute, Chart and
// Insight stages and keeps the per-conversation session list and history.
//
// State is copy-on-write: a published *models.QuerySession is never written
// again, every stage stores a fresh copy under the session id. Completions
// that arrive after Clear, or for a session that was discarded, are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/models"
)

// ErrNothingToRetry is returned by Retry when no fatal failure is pending.
var ErrNothingToRetry = errors.New("no failed question to retry")

// SQLGenerator turns a question into one or more named queries. gctx is nil
// for the first question of a conversation.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question string, gctx *models.GenerationContext) ([]models.SQLQuery, error)
}

// QueryExecutor runs a batch of queries, all or nothing, preserving order.
type QueryExecutor interface {
	ExecuteQueries(ctx context.Context, queries []models.SQLQuery) ([]models.QueryResult, error)
}

type ChartGenerator interface {
	GenerateChartConfig(ctx context.Context, results []models.QueryResult, question string) (*models.ChartDescription, error)
}

type InsightGenerator interface {
	GenerateInsights(ctx context.Context, results []models.QueryResult, question string) (*models.Insights, error)
}

// Collaborators are the external stages a Conversation drives.
type Collaborators struct {
	Generator SQLGenerator
	Executor  QueryExecutor
	Charts    ChartGenerator
	Insights  InsightGenerator
}

// Stage names an observable pipeline transition.
type Stage string

const (
	StageGenerated Stage = "generated"
	StageExecuted  Stage = "executed"
	StageCharted   Stage = "charted"
	StageInsighted Stage = "insighted"
	StageFailed    Stage = "failed"
	StageCleared   Stage = "cleared"
)

// Event is delivered to observers after each stage and on every failure.
// Session is a snapshot and may be nil for generation failures and clears.
type Event struct {
	ConversationID string
	Stage          Stage
	Question       string
	Session        *models.QuerySession
	Err            *models.PipelineError
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithObserver registers fn to receive stage events. fn is called without
// the conversation lock held, from whichever goroutine finished the stage.
func WithObserver(fn func(Event)) Option {
	return func(c *Conversation) {
		c.observers = append(c.observers, fn)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// retryRequest remembers what to resubmit after a fatal failure.
type retryRequest struct {
	text string
	sql  string
}

// Conversation is one conversation thread: its sessions, history and
// pending failure notices.
type Conversation struct {
	id        string
	collab    Collaborators
	observers []func(Event)
	now       func() time.Time

	mu       sync.Mutex
	epoch    uint64
	sessions map[string]*models.QuerySession
	order    []string
	history  []models.ConversationEntry
	notices  models.Notices
	retry    *retryRequest

	inflight sync.WaitGroup
}

// New creates an empty conversation.
func New(id string, collab Collaborators, opts ...Option) *Conversation {
	c := &Conversation{
		id:       id,
		collab:   collab,
		now:      time.Now,
		sessions: make(map[string]*models.QuerySession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Submit runs text through Generate and Execute and returns once the
// executed session is stored. Chart and Insight continue in the
// background; use the Handle to wait for them.
//
// An empty text returns models.ErrEmptyQuestion and changes nothing.
// Generation and execution failures are returned as *models.PipelineError
// carrying the original text, and no session survives them.
func (c *Conversation) Submit(ctx context.Context, text string) (*Handle, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}

	epoch, gctx := c.begin(question, retryRequest{text: question})

	start := time.Now()
	queries, err := c.collab.Generator.GenerateSQL(ctx, question, gctx)
	if err == nil && len(queries) == 0 {
		err = errors.New("generator returned no queries")
	}
	if err != nil {
		return nil, c.failGeneration(epoch, question, err)
	}
	log.Debug().Str("conversation_id", c.id).Str("stage", string(StageGenerated)).
		Int("queries", len(queries)).Dur("duration", time.Since(start)).Msg("stage done")

	return c.run(ctx, epoch, question, normalizeQueries(queries), false)
}

// SubmitPredefined skips generation and executes sql as the only query of
// a new session.
func (c *Conversation) SubmitPredefined(ctx context.Context, text, sql string) (*Handle, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("predefined question %q has no sql", question)
	}

	epoch, _ := c.begin(question, retryRequest{text: question, sql: sql})
	queries := []models.SQLQuery{{
		QueryName:        "Query 1",
		QueryDescription: question,
		SQL:              sql,
	}}
	return c.run(ctx, epoch, question, queries, true)
}

// Retry resubmits the question of the pending fatal failure.
func (c *Conversation) Retry(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	req := c.retry
	pending := c.notices.Fatal != nil
	c.mu.Unlock()

	if req == nil || !pending {
		return nil, ErrNothingToRetry
	}
	if req.sql != "" {
		return c.SubmitPredefined(ctx, req.text, req.sql)
	}
	return c.Submit(ctx, req.text)
}

// begin records the user entry, resets notices and snapshots the generation
// context from the entries that preceded this question.
func (c *Conversation) begin(question string, req retryRequest) (uint64, *models.GenerationContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var gctx *models.GenerationContext
	if len(c.history) > 0 {
		gctx = &models.GenerationContext{
			PreviousQueries: append([]models.ConversationEntry(nil), c.history...),
			Sessions:        make(map[string]*models.QuerySession),
		}
		for _, e := range c.history {
			if s, ok := c.sessions[e.SessionID]; ok {
				gctx.Sessions[e.SessionID] = s
			}
		}
	}

	c.notices = models.Notices{}
	c.retry = &req
	c.history = append(c.history, models.ConversationEntry{
		Kind:      models.EntryUser,
		Text:      question,
		CreatedAt: c.now(),
	})
	return c.epoch, gctx
}

func (c *Conversation) failGeneration(epoch uint64, question string, err error) error {
	perr := &models.PipelineError{
		Kind:     models.KindGeneration,
		Question: question,
		Err:      fmt.Errorf("%w: %w", models.ErrGeneration, err),
	}
	log.Warn().Err(err).Str("conversation_id", c.id).Str("kind", string(perr.Kind)).Msg("stage failed")

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return perr
	}
	c.history = append(c.history, models.ConversationEntry{
		Kind:      models.EntrySystem,
		Text:      perr.Error(),
		Error:     true,
		CreatedAt: c.now(),
	})
	c.notices.Fatal = perr
	c.mu.Unlock()

	c.emit(Event{Stage: StageFailed, Question: question, Err: perr})
	return perr
}

// run creates the session from queries and drives it through Execute, then
// hands Chart and Insight to a background goroutine.
func (c *Conversation) run(ctx context.Context, epoch uint64, question string, queries []models.SQLQuery, predefined bool) (*Handle, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	sess := &models.QuerySession{
		ID:         id.String(),
		UserQuery:  question,
		CreatedAt:  c.now(),
		Status:     models.StatusGenerated,
		SQLQueries: queries,
		Predefined: predefined,
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, models.ErrStale
	}
	c.sessions[sess.ID] = sess
	c.order = append(c.order, sess.ID)
	c.history = append(c.history, models.ConversationEntry{
		Kind:      models.EntrySystem,
		Text:      fmt.Sprintf("Generated %d quer%s", len(queries), plural(len(queries), "y", "ies")),
		SessionID: sess.ID,
		CreatedAt: c.now(),
	})
	c.mu.Unlock()
	c.emit(Event{Stage: StageGenerated, Question: question, Session: sess})

	start := time.Now()
	results, err := c.collab.Executor.ExecuteQueries(ctx, queries)
	if err == nil && len(results) != len(queries) {
		err = fmt.Errorf("executor returned %d results for %d queries", len(results), len(queries))
	}
	if err != nil {
		return nil, c.failExecution(epoch, sess, err)
	}
	log.Debug().Str("session_id", sess.ID).Str("stage", string(StageExecuted)).
		Int("queries", len(queries)).Dur("duration", time.Since(start)).Msg("stage done")

	executed, ok := c.update(epoch, sess.ID, func(s *models.QuerySession) {
		s.QueryResults = results
		s.Status = models.StatusExecuted
	})
	if !ok {
		return nil, models.ErrStale
	}
	c.emit(Event{Stage: StageExecuted, Question: question, Session: executed})

	h := &Handle{SessionID: sess.ID, conv: c, done: make(chan struct{})}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer close(h.done)
		c.finish(context.WithoutCancel(ctx), epoch, question, sess.ID, results)
	}()
	return h, nil
}

func (c *Conversation) failExecution(epoch uint64, sess *models.QuerySession, err error) error {
	perr := &models.PipelineError{
		Kind:      models.KindExecution,
		Question:  sess.UserQuery,
		SessionID: sess.ID,
		Err:       fmt.Errorf("%w: %w", models.ErrExecution, err),
	}
	log.Warn().Err(err).Str("session_id", sess.ID).Str("kind", string(perr.Kind)).Msg("stage failed")

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return perr
	}
	delete(c.sessions, sess.ID)
	for i, sid := range c.order {
		if sid == sess.ID {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	for i := range c.history {
		if c.history[i].SessionID == sess.ID {
			c.history[i] = models.ConversationEntry{
				Kind:      models.EntrySystem,
				Text:      perr.Error(),
				Error:     true,
				CreatedAt: c.now(),
			}
		}
	}
	c.notices.Fatal = perr
	c.mu.Unlock()

	errored := sess.Clone()
	errored.Status = models.StatusErrored
	c.emit(Event{Stage: StageFailed, Question: sess.UserQuery, Session: errored, Err: perr})
	return perr
}

// finish runs Chart then Insight. Neither failure is fatal and each is
// reported on its own notice.
func (c *Conversation) finish(ctx context.Context, epoch uint64, question, id string, results []models.QueryResult) {
	start := time.Now()
	desc, err := c.collab.Charts.GenerateChartConfig(ctx, results, question)
	if err == nil && desc == nil {
		err = errors.New("chart generator returned no description")
	}
	if err != nil {
		perr := &models.PipelineError{
			Kind:      models.KindChart,
			Question:  question,
			SessionID: id,
			Err:       fmt.Errorf("%w: %w", models.ErrChartGeneration, err),
		}
		log.Warn().Err(err).Str("session_id", id).Str("kind", string(perr.Kind)).Msg("stage failed")
		if snap, ok := c.updateWithNotice(epoch, id, func(s *models.QuerySession) {
			s.ChartError = perr.Error()
		}, func(n *models.Notices) { n.Chart = perr }); ok {
			c.emit(Event{Stage: StageFailed, Question: question, Session: snap, Err: perr})
		}
	} else {
		log.Debug().Str("session_id", id).Str("stage", string(StageCharted)).
			Dur("duration", time.Since(start)).Msg("stage done")
		if snap, ok := c.update(epoch, id, func(s *models.QuerySession) {
			s.ChartConfig = desc
			s.Status = models.StatusCharted
		}); ok {
			c.emit(Event{Stage: StageCharted, Question: question, Session: snap})
		}
	}

	start = time.Now()
	insights, err := c.collab.Insights.GenerateInsights(ctx, results, question)
	if err == nil && insights == nil {
		err = errors.New("insight generator returned nothing")
	}
	if err != nil {
		perr := &models.PipelineError{
			Kind:      models.KindInsight,
			Question:  question,
			SessionID: id,
			Err:       fmt.Errorf("%w: %w", models.ErrInsightGeneration, err),
		}
		log.Warn().Err(err).Str("session_id", id).Str("kind", string(perr.Kind)).Msg("stage failed")
		if snap, ok := c.updateWithNotice(epoch, id, func(s *models.QuerySession) {
			s.InsightError = perr.Error()
			s.Done = true
		}, func(n *models.Notices) { n.Insight = perr }); ok {
			c.emit(Event{Stage: StageFailed, Question: question, Session: snap, Err: perr})
		}
		return
	}

	log.Debug().Str("session_id", id).Str("stage", string(StageInsighted)).
		Dur("duration", time.Since(start)).Msg("stage done")
	if snap, ok := c.update(epoch, id, func(s *models.QuerySession) {
		s.Insights = insights
		s.Status = models.StatusInsighted
		s.Done = true
	}); ok {
		c.emit(Event{Stage: StageInsighted, Question: question, Session: snap})
	}
}

// update replaces session id with a modified copy. It reports false, and
// changes nothing, when the conversation was cleared since epoch or the
// session no longer exists.
func (c *Conversation) update(epoch uint64, id string, fn func(*models.QuerySession)) (*models.QuerySession, bool) {
	return c.updateWithNotice(epoch, id, fn, nil)
}

func (c *Conversation) updateWithNotice(epoch uint64, id string, fn func(*models.QuerySession), notice func(*models.Notices)) (*models.QuerySession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		log.Debug().Str("session_id", id).Msg("dropping completion for cleared conversation")
		return nil, false
	}
	cur, ok := c.sessions[id]
	if !ok {
		return nil, false
	}
	next := cur.Clone()
	fn(next)
	c.sessions[id] = next
	// Conversation-level notices belong to the latest question; earlier
	// sessions report through their own ChartError/InsightError.
	if notice != nil && len(c.order) > 0 && c.order[len(c.order)-1] == id {
		notice(&c.notices)
	}
	return next, true
}

// SelectQuery points session id at the query result index. It is a no-op,
// returning false, for an unknown session or an out-of-range index.
func (c *Conversation) SelectQuery(id string, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.sessions[id]
	if !ok || index < 0 || index >= len(cur.SQLQueries) {
		return false
	}
	next := cur.Clone()
	next.SelectedQueryIndex = index
	c.sessions[id] = next
	return true
}

// Clear drops every session, history entry and notice. In-flight stages of
// earlier questions finish but their results are discarded.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.epoch++
	c.sessions = make(map[string]*models.QuerySession)
	c.order = nil
	c.history = nil
	c.notices = models.Notices{}
	c.retry = nil
	c.mu.Unlock()

	c.emit(Event{Stage: StageCleared})
}

// Wait blocks until every background Chart/Insight run has returned.
func (c *Conversation) Wait() {
	c.inflight.Wait()
}

// Session returns the snapshot of session id.
func (c *Conversation) Session(id string) (*models.QuerySession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Current returns the most recently created session still present.
func (c *Conversation) Current() (*models.QuerySession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return nil, false
	}
	return c.sessions[c.order[len(c.order)-1]], true
}

// Sessions returns all sessions in creation order.
func (c *Conversation) Sessions() []*models.QuerySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.QuerySession, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.sessions[id])
	}
	return out
}

func (c *Conversation) History() []models.ConversationEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ConversationEntry(nil), c.history...)
}

func (c *Conversation) Notices() models.Notices {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notices
}

// Snapshot assembles the full conversation view in one critical section.
func (c *Conversation) Snapshot() models.ConversationResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := models.ConversationResponse{
		ID:       c.id,
		Sessions: make([]*models.QuerySession, 0, len(c.order)),
		History:  append([]models.ConversationEntry{}, c.history...),
		Notices:  c.notices,
	}
	for _, id := range c.order {
		resp.Sessions = append(resp.Sessions, c.sessions[id])
	}
	if n := len(c.order); n > 0 {
		resp.CurrentSessionID = c.order[n-1]
	}
	return resp
}

func (c *Conversation) emit(ev Event) {
	ev.ConversationID = c.id
	for _, fn := range c.observers {
		fn(ev)
	}
}

// normalizeQueries fills missing names and makes names unique within the
// batch, since results are matched to queries by name.
func normalizeQueries(in []models.SQLQuery) []models.SQLQuery {
	out := make([]models.SQLQuery, len(in))
	seen := make(map[string]bool, len(in))
	for i, q := range in {
		name := strings.TrimSpace(q.QueryName)
		if name == "" {
			name = fmt.Sprintf("Query %d", i+1)
		}
		if seen[name] {
			base := name
			for k := 2; seen[name]; k++ {
				name = fmt.Sprintf("%s (%d)", base, k)
			}
		}
		seen[name] = true
		q.QueryName = name
		out[i] = q
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Handle tracks the background stages of one submitted session.
type Handle struct {
	SessionID string

	conv *Conversation
	done chan struct{}
}

// Done is closed once the Insight stage has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Snapshot returns the latest stored state of the session. It reports false
// once the session has been cleared.
func (h *Handle) Snapshot() (*models.QuerySession, bool) {
	return h.conv.Session(h.SessionID)
}

// Wait blocks until the session is done or ctx ends, then returns the
// latest snapshot.
func (h *Handle) Wait(ctx context.Context) (*models.QuerySession, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s, ok := h.Snapshot()
	if !ok {
		return nil, models.ErrStale
	}
	return s, nil
}
