package quotes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simplici0/cotizador/internal/debounce"
	"github.com/Simplici0/cotizador/internal/pricing"
)

const draftSaveTimeout = 5 * time.Second

type draftStore interface {
	SaveDraft(ctx context.Context, id string, d pricing.Draft, b pricing.Breakdown) error
	Draft(ctx context.Context, id string) (pricing.Draft, error)
}

// DraftResult is the state of a draft after an edit.
type DraftResult struct {
	ID        string                         `json:"id"`
	Draft     pricing.Draft                  `json:"draft"`
	Request   pricing.Request                `json:"request"`
	Breakdown pricing.Breakdown              `json:"breakdown"`
	Display   Display                        `json:"display"`
	Conflict  *pricing.ConflictingMarginMode `json:"conflict,omitempty"`
}

type draftSession struct {
	draft    pricing.Draft
	debounce *debounce.Debouncer

	// edits counts accepted edits; a save only retires the session if no edit followed it.
	edits uint64
}

// DraftBook keeps drafts being edited live. Every edit is priced right away; writing the
// draft to storage is debounced so a burst of keystrokes produces one save.
type DraftBook struct {
	store    draftStore
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*draftSession
}

// NewDraftBook returns an empty DraftBook.
func NewDraftBook(store draftStore, interval time.Duration, logger zerolog.Logger) *DraftBook {
	return &DraftBook{
		store:    store,
		interval: interval,
		logger:   logger,
		sessions: make(map[string]*draftSession),
	}
}

// Apply edits the draft. An invalid edit is rejected and the draft keeps its previous state;
// a rejected first edit creates no draft at all.
func (b *DraftBook) Apply(ctx context.Context, id string, policy pricing.Policy, u pricing.DraftUpdate) (DraftResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess, live := b.sessions[id]
	var current pricing.Draft
	if live {
		current = sess.draft
	} else {
		d, err := b.store.Draft(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return DraftResult{}, err
		}
		current = d
	}

	next, err := current.Apply(u)
	if err != nil {
		return DraftResult{}, &pricing.ValidationError{Fields: []pricing.FieldError{{Field: "fields", Reason: err.Error()}}}
	}
	res, err := price(id, next, policy)
	if err != nil {
		return DraftResult{}, err
	}

	if !live {
		sess = &draftSession{debounce: debounce.New(b.interval)}
		b.sessions[id] = sess
	}
	sess.draft = next
	sess.edits++
	edit := sess.edits
	breakdown := res.Breakdown
	sess.debounce.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), draftSaveTimeout)
		defer cancel()
		if err := b.store.SaveDraft(ctx, id, next, breakdown); err != nil {
			b.logger.Error().Err(err).Str("draft_id", id).Msg("save draft")
			return
		}
		b.logger.Debug().Str("draft_id", id).Msg("draft saved")
		b.retire(id, sess, edit)
	})
	return res, nil
}

// retire drops a session whose latest edit is saved. Later reads resume it from the store.
func (b *DraftBook) retire(id string, sess *draftSession, edit uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.sessions[id]; !ok || cur != sess || sess.edits != edit {
		return
	}
	delete(b.sessions, id)
	sess.debounce.Stop()
}

// Get prices the current state of a draft.
func (b *DraftBook) Get(ctx context.Context, id string, policy pricing.Policy) (DraftResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sess, ok := b.sessions[id]; ok {
		return price(id, sess.draft, policy)
	}
	d, err := b.store.Draft(ctx, id)
	if err != nil {
		return DraftResult{}, err
	}
	return price(id, d, policy)
}

// Close saves every pending draft and stops the debouncers.
func (b *DraftBook) Close() {
	b.mu.Lock()
	sessions := make([]*draftSession, 0, len(b.sessions))
	for _, sess := range b.sessions {
		sessions = append(sessions, sess)
	}
	b.sessions = make(map[string]*draftSession)
	b.mu.Unlock()

	for _, sess := range sessions {
		sess.debounce.Flush()
		sess.debounce.Stop()
	}
}

func price(id string, d pricing.Draft, policy pricing.Policy) (DraftResult, error) {
	req, conflict := d.Request(policy)
	if err := pricing.ValidateRequest(req); err != nil {
		return DraftResult{}, err
	}
	bd := pricing.ComputeBreakdown(req, policy)
	return DraftResult{
		ID:        id,
		Draft:     d,
		Request:   req,
		Breakdown: bd,
		Display:   displayOf(bd),
		Conflict:  conflict,
	}, nil
}
