package triage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/retrieval"
)

const (
	// DefaultMaxTurns is the session turn ceiling: after this many user
	// messages the session is finalized with whatever is known.
	DefaultMaxTurns = 10

	// DefaultContextBudgetChars caps the reference material included in a
	// turn's system prompt.
	DefaultContextBudgetChars = 6000
)

// Hooks receives controller lifecycle events, typically bridged to metrics.
// Zero value is valid; nil fields are skipped.
type Hooks struct {
	OnSessionCreated       func()
	OnSessionFinalized     func(level UrgencyLevel, userTurns int, forced bool)
	OnLLMCall              func(inputTokens, outputTokens int, seconds float64)
	OnRetrieval            func(hits int, degraded bool)
	OnAnalysisFailure      func()
	OnAnalysisParseFailure func()
}

func (h Hooks) SessionCreated() {
	if h.OnSessionCreated != nil {
		h.OnSessionCreated()
	}
}

func (h Hooks) SessionFinalized(level UrgencyLevel, userTurns int, forced bool) {
	if h.OnSessionFinalized != nil {
		h.OnSessionFinalized(level, userTurns, forced)
	}
}

func (h Hooks) LLMCall(in, out int, seconds float64) {
	if h.OnLLMCall != nil {
		h.OnLLMCall(in, out, seconds)
	}
}

func (h Hooks) Retrieval(hits int, degraded bool) {
	if h.OnRetrieval != nil {
		h.OnRetrieval(hits, degraded)
	}
}

func (h Hooks) AnalysisFailure() {
	if h.OnAnalysisFailure != nil {
		h.OnAnalysisFailure()
	}
}

func (h Hooks) AnalysisParseFailure() {
	if h.OnAnalysisParseFailure != nil {
		h.OnAnalysisParseFailure()
	}
}

// Options tunes controller behavior; zero values select defaults.
type Options struct {
	MaxTurns           int
	ContextBudgetChars int
	Hooks              Hooks
	Notifier           Notifier
	Now                func() time.Time
}

// Controller is the business boundary for triage conversations. It owns the
// session lifecycle: creation, turn handling, completion analysis, and
// finalization.
type Controller struct {
	store     Store
	gen       Generator
	retriever Retriever
	notifier  Notifier
	logger    log.Logger
	hooks     Hooks

	maxTurns      int
	contextBudget int
	now           func() time.Time

	// inflight serializes turns per session: a second Submit while one is
	// running is rejected, not queued.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewController creates a triage controller.
func NewController(store Store, gen Generator, retriever Retriever, logger log.Logger, opts Options) *Controller {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.ContextBudgetChars <= 0 {
		opts.ContextBudgetChars = DefaultContextBudgetChars
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:         store,
		gen:           gen,
		retriever:     retriever,
		notifier:      opts.Notifier,
		logger:        logger,
		hooks:         opts.Hooks,
		maxTurns:      opts.MaxTurns,
		contextBudget: opts.ContextBudgetChars,
		now:           opts.Now,
		inflight:      map[string]struct{}{},
	}
}

// TurnResult is the outcome of one submitted message.
type TurnResult struct {
	Reply    string  `json:"reply"`
	Complete bool    `json:"complete"`
	Result   *Result `json:"result,omitempty"`
}

// CreateSession starts a conversation and returns the session with the
// opening question already appended.
func (c *Controller) CreateSession(ctx context.Context, patient PatientContext) (*Session, error) {
	patient.ChiefComplaint = strings.TrimSpace(patient.ChiefComplaint)
	if patient.ChiefComplaint == "" {
		return nil, &ValidationError{Field: "chief_complaint", Reason: "must not be empty"}
	}
	if patient.Age < 0 || patient.Age > 150 {
		return nil, &ValidationError{Field: "age", Reason: "out of range"}
	}

	now := c.now()
	s := &Session{
		ID:        uuid.NewString(),
		Patient:   patient,
		CreatedAt: now,
		Status:    StatusActive,
	}
	L := c.logger.With("session_id", s.ID)

	// Ground the opening question on the chief complaint alone.
	rr := c.retriever.Retrieve(ctx, patient.ChiefComplaint, nil)
	c.hooks.Retrieval(len(rr.Hits), rr.Empty())
	rr = retrieval.TruncateToBudget(rr, c.contextBudget)

	system := buildSystemPrompt(patient, rr.ContextBlock())
	s.append(RoleSystem, system, now)
	appendSources(s, rr)

	opening := openingQuestionFallback(patient.ChiefComplaint)
	resp, err := c.generate(ctx, &GenerateRequest{
		System: system,
		Messages: []PromptMessage{{
			Role:    RoleUser,
			Content: "Please greet me briefly and ask your first triage question about my chief complaint.",
		}},
		MaxTokens: replyMaxTokens,
	})
	if err != nil {
		L.Warn(ctx, "opening question generation failed, using fallback", "error", err)
	} else {
		opening = resp.Text
	}
	s.append(RoleAssistant, opening, c.now())

	if err := c.store.Put(ctx, s); err != nil {
		return nil, err
	}
	c.hooks.SessionCreated()
	L.Info(ctx, "session created", "chief_complaint", patient.ChiefComplaint)
	return s.Clone(), nil
}

// Submit handles one patient message: retrieve grounding, generate a reply,
// run the completion analysis, and finalize when the analysis allows it or
// the turn ceiling is reached.
func (c *Controller) Submit(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Reason: "must not be empty"}
	}

	if err := c.acquire(sessionID); err != nil {
		return nil, err
	}
	defer c.release(sessionID)

	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusComplete {
		return nil, ErrSessionComplete
	}
	L := c.logger.With("session_id", s.ID)

	prior := s.turnContents()
	s.append(RoleUser, message, c.now())

	rr := c.retriever.Retrieve(ctx, message, prior)
	c.hooks.Retrieval(len(rr.Hits), rr.Empty())
	rr = retrieval.TruncateToBudget(rr, c.contextBudget)

	// Refresh the stored system prompt so later turns and the transcript
	// carry the grounding actually used.
	system := buildSystemPrompt(s.Patient, rr.ContextBlock())
	s.Messages[0].Content = system

	reply := replyFallback
	resp, err := c.generate(ctx, &GenerateRequest{
		System:    system,
		Messages:  promptMessages(s),
		MaxTokens: replyMaxTokens,
	})
	if err != nil {
		L.Warn(ctx, "reply generation failed, using fallback", "error", err)
	} else {
		reply = resp.Text
	}
	s.append(RoleAssistant, reply, c.now())

	appendSources(s, rr)

	out := c.analyzeCompletion(ctx, s)
	forced := s.UserTurns() >= c.maxTurns
	if !out.CanComplete && !forced {
		if err := c.store.Put(ctx, s); err != nil {
			return nil, err
		}
		return &TurnResult{Reply: reply}, nil
	}

	if forced && !out.CanComplete {
		// Turn ceiling reached without a confident analysis: finalize with
		// a cautious default rather than keep the patient in a loop.
		L.Warn(ctx, "turn ceiling reached, forcing finalization", "turns", s.UserTurns())
		if out.UrgencyLevel == "" {
			out.UrgencyLevel = string(UrgencySemiUrgent)
		}
		if out.Reasoning == "" {
			out.Reasoning = "The conversation reached its length limit before a confident assessment; " +
				"erring on the side of caution."
		}
	}

	res := formatResult(out, s.conversationText(), s.Sources)
	s.Status = StatusComplete
	s.Result = res
	s.LastUpdatedAt = c.now()

	if err := c.store.Put(ctx, s); err != nil {
		return nil, err
	}
	c.hooks.SessionFinalized(res.UrgencyLevel, s.UserTurns(), forced)
	L.Info(ctx, "session finalized",
		"urgency", res.UrgencyLevel,
		"turns", s.UserTurns(),
		"forced", forced,
	)

	if c.notifier != nil && (res.UrgencyLevel == UrgencyEmergency || res.UrgencyLevel == UrgencyUrgent) {
		if err := c.notifier.Send(context.WithoutCancel(ctx), s.ID, res); err != nil {
			L.Error(ctx, err, "escalation notification failed")
		}
	}

	return &TurnResult{Reply: reply, Complete: true, Result: res}, nil
}

// GetSession returns a copy of the session.
func (c *Controller) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// GetResult returns the finalized result, or ErrSessionNotFound /
// a nil result with active status semantics via (nil, nil).
func (c *Controller) GetResult(ctx context.Context, sessionID string) (*Result, Status, error) {
	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if s.Status != StatusComplete {
		return nil, s.Status, nil
	}
	return s.Clone().Result, s.Status, nil
}

// Abandon deletes a session that will not be continued.
func (c *Controller) Abandon(ctx context.Context, sessionID string) error {
	if err := c.acquire(sessionID); err != nil {
		return err
	}
	defer c.release(sessionID)
	return c.store.Delete(ctx, sessionID)
}

func (c *Controller) acquire(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[sessionID]; ok {
		return ErrTurnInFlight
	}
	c.inflight[sessionID] = struct{}{}
	return nil
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

// generate wraps the provider call with timing for the metrics hook.
func (c *Controller) generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := c.now()
	resp, err := c.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.hooks.LLMCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start).Seconds())
	return resp, nil
}

// appendSources records the turn's retrieval hits on the session, deduped by
// content, so the final result can cite everything consulted.
func appendSources(s *Session, rr *retrieval.Result) {
	for _, h := range rr.Hits {
		dup := false
		for _, existing := range s.Sources {
			if existing.Content == h.Chunk.Content {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		md := map[string]string{"source": h.Chunk.Source}
		for k, v := range h.Chunk.Metadata {
			md[k] = v
		}
		s.Sources = append(s.Sources, Source{
			Content:   h.Chunk.Content,
			Metadata:  md,
			Truncated: h.Truncated,
		})
	}
}

// promptMessages renders the session's user and assistant turns for the
// provider. The system prompt travels separately in GenerateRequest.System.
func promptMessages(s *Session) []PromptMessage {
	out := make([]PromptMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, PromptMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
