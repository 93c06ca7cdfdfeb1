package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"legalnexus/api/internal/store"
	"legalnexus/api/internal/util"
)

type evaluatorStore interface {
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetAccessSubject(ctx context.Context, userID string) (store.AccessSubject, error)
	IsOnMatterTeam(ctx context.Context, userID, matterID string) (bool, error)
	ListSharesForSubject(ctx context.Context, userID string, departmentIDs, documentIDs []string) ([]store.DocumentShare, error)
	InsertAccessLog(ctx context.Context, entry store.AccessLog) error
	TouchLastAccessed(ctx context.Context, documentID string, at time.Time) error
}

// AccessRequest is one attempt by a user to act on a document. FirmID is
// the caller's firm; when set, documents of other firms are reported as not
// found. IPAddress and UserAgent are only recorded.
type AccessRequest struct {
	UserID     string
	FirmID     string
	DocumentID string
	Action     Action
	IPAddress  string
	UserAgent  string
}

// Evaluator answers access checks and records each one in the access log.
type Evaluator struct {
	store evaluatorStore
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Evaluator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(s evaluatorStore, log zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{store: s, log: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanAccess reports whether the user may view the document. The check is
// logged like any other.
func (e *Evaluator) CanAccess(ctx context.Context, userID, documentID string) (bool, error) {
	decision, err := e.Explain(ctx, AccessRequest{UserID: userID, DocumentID: documentID, Action: ActionView})
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Explain evaluates the request and says why it was granted or denied. Only
// failures to load the facts are returned as errors; a denial is a Decision.
func (e *Evaluator) Explain(ctx context.Context, req AccessRequest) (Decision, error) {
	_, decision, err := e.evaluate(ctx, req)
	return decision, err
}

// evaluate also returns the loaded document so callers acting on a grant do
// not read it twice. The document is zero when it does not exist.
func (e *Evaluator) evaluate(ctx context.Context, req AccessRequest) (store.Document, Decision, error) {
	if req.Action == "" {
		req.Action = ActionView
	}
	if _, err := ParseAction(string(req.Action)); err != nil {
		return store.Document{}, Decision{}, err
	}

	doc, err := e.store.GetDocument(ctx, req.DocumentID)
	if err != nil && !isMissing(err) {
		return store.Document{}, Decision{}, fmt.Errorf("load document: %w", err)
	}
	if err != nil || (req.FirmID != "" && doc.FirmID != req.FirmID) {
		decision := deny(ReasonDocumentNotFound)
		observeDecision(decision)
		return store.Document{}, decision, nil
	}

	subject, err := e.store.GetAccessSubject(ctx, req.UserID)
	if isMissing(err) {
		// No log row: the access log references users.
		decision := deny(ReasonUserNotFound)
		observeDecision(decision)
		return doc, decision, nil
	}
	if err != nil {
		return store.Document{}, Decision{}, fmt.Errorf("load user: %w", err)
	}

	now := e.now()
	decision, err := e.decide(ctx, subject, doc, now)
	if err != nil {
		return store.Document{}, Decision{}, err
	}
	if subject.FirmID != doc.FirmID {
		// Log rows belong to the document's firm; a foreign user's attempt
		// is never written there.
		observeDecision(decision)
		return doc, decision, nil
	}
	e.record(ctx, req, doc, decision, now)
	return doc, decision, nil
}

// decide loads the matter team and share facts for one document and applies
// the policy without logging.
func (e *Evaluator) decide(ctx context.Context, subject store.AccessSubject, doc store.Document, now time.Time) (Decision, error) {
	facts := Facts{Now: now, Subject: subject, Document: doc}
	if subject.FirmID != doc.FirmID || !subject.IsActive {
		return Decide(facts), nil
	}

	if doc.MatterID != nil {
		onTeam, err := e.store.IsOnMatterTeam(ctx, subject.UserID, *doc.MatterID)
		if err != nil {
			return Decision{}, fmt.Errorf("load matter team: %w", err)
		}
		facts.OnMatterTeam = onTeam
	}

	shares, err := e.store.ListSharesForSubject(ctx, subject.UserID, subject.DepartmentIDs, []string{doc.ID})
	if err != nil {
		return Decision{}, fmt.Errorf("load shares: %w", err)
	}
	facts.Shares = shares
	return Decide(facts), nil
}

// record appends the access log entry and touches last_accessed on a granted
// view. Failures are logged and counted, never returned.
func (e *Evaluator) record(ctx context.Context, req AccessRequest, doc store.Document, decision Decision, now time.Time) {
	observeDecision(decision)
	ctx = context.WithoutCancel(ctx)

	entry := store.AccessLog{
		ID:         util.NewID(),
		FirmID:     doc.FirmID,
		DocumentID: doc.ID,
		UserID:     req.UserID,
		Action:     string(req.Action),
		Granted:    decision.Allowed,
		IPAddress:  optional(req.IPAddress),
		UserAgent:  optional(req.UserAgent),
		CreatedAt:  now,
	}
	if !decision.Allowed {
		entry.DenialReason = optional(decision.Reason)
	}
	if err := e.store.InsertAccessLog(ctx, entry); err != nil {
		auditFailuresTotal.Inc()
		e.log.Warn().Err(err).
			Str("document_id", doc.ID).
			Str("user_id", req.UserID).
			Str("action", string(req.Action)).
			Bool("granted", decision.Allowed).
			Msg("access log append failed")
	}

	if decision.Allowed && req.Action == ActionView {
		if err := e.store.TouchLastAccessed(ctx, doc.ID, now); err != nil {
			e.log.Warn().Err(err).Str("document_id", doc.ID).Msg("touch last accessed failed")
		}
	}
}

// isMissing treats malformed ids like absent rows.
func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrInvalidInput)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
