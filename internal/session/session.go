// Package session holds the in-memory list of results and serializes the
// AI operations that act on it.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/questiongen"
)

// QuestionService is the AI side of the session.
type QuestionService interface {
	Generate(ctx context.Context, in questiongen.GenerateInput) ([]questiongen.AnalysisResult, error)
	Transform(ctx context.Context, r questiongen.AnalysisResult, format questiongen.QuestionFormat) (questiongen.AnalysisResult, error)
	Regenerate(ctx context.Context, r questiongen.AnalysisResult) (questiongen.AnalysisResult, error)
	Critique(ctx context.Context, r questiongen.AnalysisResult, objection string, history []questiongen.CritiqueExchange) (string, error)
}

// Session owns the result list. Generate, Regenerate and Critique share one
// busy flag; Transform is gated per item. The mutex is never held across a
// service call, and every write-back re-resolves the item by ID.
type Session struct {
	svc QuestionService
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	items  []*Item
	busy   bool
	busyOp questiongen.Operation
}

// New creates an empty session.
func New(svc QuestionService) *Session {
	return &Session{
		svc: svc,
		log: slog.Default().With("component", "session"),
		now: time.Now,
	}
}

// Generate analyses the input and appends one item per returned result.
// An empty slice with a nil error means no questions were found.
func (s *Session) Generate(ctx context.Context, in attachment.Input, format questiongen.QuestionFormat) ([]Item, error) {
	if err := s.acquire(questiongen.OpGenerate); err != nil {
		return nil, err
	}
	defer s.release()

	results, err := s.svc.Generate(ctx, questiongen.GenerateInput{Input: in, Format: format})
	if err != nil {
		s.log.Warn("generate failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	added := make([]Item, 0, len(results))
	for _, r := range results {
		it := &Item{ID: uuid.NewString(), Result: r, CreatedAt: now, UpdatedAt: now}
		s.items = append(s.items, it)
		added = append(added, it.clone())
	}
	s.log.Info("generated", "added", len(added), "total", len(s.items))
	return added, nil
}

// Regenerate replaces the item's question with a different one in the same
// format.
func (s *Session) Regenerate(ctx context.Context, id string) (Item, error) {
	if err := s.acquire(questiongen.OpRegenerate); err != nil {
		return Item{}, err
	}
	defer s.release()

	current, rev, err := s.result(id)
	if err != nil {
		return Item{}, err
	}

	next, err := s.svc.Regenerate(ctx, current)
	if err != nil {
		s.log.Warn("regenerate failed", "item", id, "error", err)
		return Item{}, err
	}
	return s.replace(id, rev, current, next)
}

// Transform rewrites the item's question into another format. Different
// items may transform concurrently.
func (s *Session) Transform(ctx context.Context, id string, format questiongen.QuestionFormat) (Item, error) {
	s.mu.Lock()
	it := s.find(id)
	if it == nil {
		s.mu.Unlock()
		return Item{}, ErrNotFound
	}
	if it.Transforming {
		s.mu.Unlock()
		return Item{}, ErrTransformInFlight
	}
	it.Transforming = true
	current, rev := it.Result, it.Revision
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		// The item may have been removed; the marker lives on the old pointer.
		it.Transforming = false
		s.mu.Unlock()
	}()

	next, err := s.svc.Transform(ctx, current, format)
	if err != nil {
		s.log.Warn("transform failed", "item", id, "error", err)
		return Item{}, err
	}
	out, err := s.replace(id, rev, current, next)
	out.Transforming = false
	return out, err
}

// Critique sends an objection about the item and records the exchange in
// its history.
func (s *Session) Critique(ctx context.Context, id, objection string) (string, error) {
	if err := s.acquire(questiongen.OpCritique); err != nil {
		return "", err
	}
	defer s.release()

	s.mu.Lock()
	it := s.find(id)
	if it == nil {
		s.mu.Unlock()
		return "", ErrNotFound
	}
	current, rev := it.Result, it.Revision
	history := append([]questiongen.CritiqueExchange(nil), it.Critiques...)
	s.mu.Unlock()

	reply, err := s.svc.Critique(ctx, current, objection, history)
	if err != nil {
		s.log.Warn("critique failed", "item", id, "error", err)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it = s.find(id)
	if it == nil {
		return "", ErrItemRemoved
	}
	if it.Revision != rev {
		s.log.Info("discarding critique for replaced question", "item", id)
		return "", ErrItemChanged
	}
	it.Critiques = append(it.Critiques, questiongen.CritiqueExchange{Objection: objection, Reply: reply})
	return reply, nil
}

// Remove deletes the item. An in-flight response for it will be discarded.
func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Clear removes every item.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Items returns copies of all items in order.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

// Item returns a copy of one item.
func (s *Session) Item(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		return Item{}, ErrNotFound
	}
	return it.clone(), nil
}

// Busy reports whether a globally serialized operation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Snapshot returns the items and busy state under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Items: s.copyItems(), Busy: s.busy}
	if s.busy {
		snap.Operation = s.busyOp
	}
	return snap
}

func (s *Session) acquire(op questiongen.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.busyOp = op
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.busyOp = ""
}

func (s *Session) result(id string) (questiongen.AnalysisResult, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		return questiongen.AnalysisResult{}, 0, ErrNotFound
	}
	return it.Result, it.Revision, nil
}

// replace writes next back to the item if it still exists and is still at
// revision rev. The anchor text of prev is carried forward when next lacks
// one.
func (s *Session) replace(id string, rev int, prev, next questiongen.AnalysisResult) (Item, error) {
	if next.Source.OriginalQuestionText == "" {
		next.Source.OriginalQuestionText = prev.Source.OriginalQuestionText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.find(id)
	if it == nil {
		s.log.Info("discarding response for removed item", "item", id)
		return Item{}, ErrItemRemoved
	}
	if it.Revision != rev {
		s.log.Info("discarding response for replaced question", "item", id)
		return Item{}, ErrItemChanged
	}
	it.Result = next
	it.Revision++
	it.Critiques = nil
	it.UpdatedAt = s.now()
	return it.clone(), nil
}

// find must be called with mu held.
func (s *Session) find(id string) *Item {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (s *Session) copyItems() []Item {
	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone()
	}
	return out
}
