package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/farmtable-go/internal/budget"
	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
	"github.com/54b3r/farmtable-go/internal/provider"
	"github.com/54b3r/farmtable-go/internal/rag"
	"github.com/54b3r/farmtable-go/internal/store"
)

// Config holds the dependencies of a Recommender.
type Config struct {
	// Completer writes the narrative. Required.
	Completer provider.Completer

	// Ranker ranks catalog listings. Required.
	Ranker ProduceRanker

	// Knowledge grounds the narrative in knowledge base entries. Optional.
	Knowledge KnowledgeRetriever

	// History persists and replays turns. Optional; nil makes every
	// request stateless.
	History store.ConversationStore

	// HistoryDepth is how many prior turns are loaded. Defaults to 5.
	HistoryDepth int

	// ProduceTopK is the recommendation count. Defaults to 5.
	ProduceTopK int

	// KnowledgeTopK is the knowledge snippet count. Defaults to 3.
	KnowledgeTopK int

	// MaxTokens caps the narrative length. Defaults to 500.
	MaxTokens int

	// Temperature is the sampling temperature. Defaults to 0.7.
	Temperature float32

	// MaxContextTokens is the estimated prompt budget. Prior questions and
	// knowledge snippets are trimmed to fit. Defaults to
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// Observe, when set, receives OutcomeOK or OutcomeDegraded per request.
	Observe func(outcome string)
}

// Recommender answers free-text produce questions.
type Recommender struct {
	cfg Config
	now func() time.Time
}

// NewRecommender validates cfg, applies defaults and returns a Recommender.
func NewRecommender(cfg Config) (*Recommender, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("agent: Completer must not be nil")
	}
	if cfg.Ranker == nil {
		return nil, fmt.Errorf("agent: Ranker must not be nil")
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 5
	}
	if cfg.ProduceTopK <= 0 {
		cfg.ProduceTopK = 5
	}
	if cfg.KnowledgeTopK <= 0 {
		cfg.KnowledgeTopK = rag.DefaultKnowledgeTopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Recommender{cfg: cfg, now: time.Now}, nil
}

// UserContext is what the customer told us about themselves.
type UserContext struct {
	Location            string   `json:"location,omitempty"`
	Season              string   `json:"season,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
	CookingSkill        string   `json:"cookingSkill,omitempty"`
}

// Request is a recommendation request.
type Request struct {
	Question  string       `json:"question"`
	UserID    string       `json:"userId,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Context   *UserContext `json:"context,omitempty"`
}

// Result is a recommendation response.
type Result struct {
	Response            string                    `json:"response"`
	Recommendations     []rag.ScoredProduce       `json:"recommendations"`
	Method              string                    `json:"method"`
	SessionID           string                    `json:"sessionId,omitempty"`
	UsedHistory         bool                      `json:"usedHistory"`
	ConversationHistory []domain.ConversationTurn `json:"conversationHistory"`
}

// Recommend answers req. Only a missing question is an error: retrieval and
// history failures degrade to empty sections, and a completion failure
// yields ApologyResponse with no recommendations and nothing persisted.
func (r *Recommender) Recommend(ctx context.Context, req Request) (*Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.NewValidationError("question", "is required")
	}
	log := logging.FromContext(ctx)
	start := r.now()

	history := r.loadHistory(ctx, req.UserID, req.SessionID)
	previous := make([]string, 0, len(history))
	for _, t := range history {
		previous = append(previous, t.Question)
	}

	method := MethodSemantic
	if req.Context != nil || len(previous) > 0 {
		method = MethodSemanticWithContext
	}

	result := &Result{
		Method:              method,
		SessionID:           req.SessionID,
		UsedHistory:         len(previous) > 0,
		ConversationHistory: history[:min(len(history), promptHistoryDepth)],
		Recommendations:     []rag.ScoredProduce{},
	}

	recs, snippets := r.retrieve(ctx, question, req.Context)

	prompt := newRecommendPrompt(question, req.Context, recs, chronological(previous, promptHistoryDepth), snippets)
	r.fitBudget(ctx, prompt)

	narrative, err := r.cfg.Completer.Complete(ctx, provider.CompletionRequest{
		System:      recommendSystemPrompt,
		User:        prompt.render(),
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		log.Warn("agent: recommendation completion failed, returning apology",
			slog.Int("candidates", len(recs)),
			slog.Any("error", err),
		)
		r.observe(OutcomeDegraded)
		result.Response = ApologyResponse
		return result, nil
	}

	result.Response = narrative
	if recs != nil {
		result.Recommendations = recs
	}

	meta := DeriveMetadata(recs)
	meta.ResponseTimeMS = r.now().Sub(start).Milliseconds()
	meta.ModelUsed = provider.ModelOf(r.cfg.Completer)

	r.persist(ctx, &domain.ConversationTurn{
		Question:  question,
		Response:  narrative,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Context:   turnContext(req, previous),
		Metadata:  meta,
	})
	r.observe(OutcomeOK)
	return result, nil
}

// loadHistory returns up to HistoryDepth prior turns, newest first. Failures
// are logged and treated as no history.
func (r *Recommender) loadHistory(ctx context.Context, userID, sessionID string) []domain.ConversationTurn {
	if r.cfg.History == nil || (userID == "" && sessionID == "") {
		return []domain.ConversationTurn{}
	}
	turns, err := r.cfg.History.Recent(ctx, userID, sessionID, r.cfg.HistoryDepth)
	if err != nil {
		logging.FromContext(ctx).Warn("history: failed to load prior turns", slog.Any("error", err))
		return []domain.ConversationTurn{}
	}
	if turns == nil {
		return []domain.ConversationTurn{}
	}
	return turns
}

// retrieve ranks produce and knowledge concurrently. Each side degrades to
// an empty list on error so one failing store never blocks the answer.
func (r *Recommender) retrieve(ctx context.Context, question string, uc *UserContext) ([]rag.ScoredProduce, []rag.ScoredKnowledge) {
	var (
		recs     []rag.ScoredProduce
		snippets []rag.ScoredKnowledge
		filters  catalog.Filters
	)
	if uc != nil {
		filters.Location = uc.Location
		filters.Season = uc.Season
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := r.cfg.Ranker.Rank(gctx, question, filters, r.cfg.ProduceTopK)
		if err != nil {
			logging.FromContext(ctx).Warn("agent: produce ranking failed", slog.Any("error", err))
			return nil
		}
		recs = out
		return nil
	})
	if r.cfg.Knowledge != nil {
		g.Go(func() error {
			out, err := r.cfg.Knowledge.Retrieve(gctx, question, "", r.cfg.KnowledgeTopK)
			if err != nil {
				logging.FromContext(ctx).Warn("agent: knowledge retrieval failed", slog.Any("error", err))
				return nil
			}
			snippets = out
			return nil
		})
	}
	_ = g.Wait()
	return recs, snippets
}

// fitBudget trims knowledge snippets (least relevant first), then prior
// questions (oldest first) until the prompt fits MaxContextTokens.
func (r *Recommender) fitBudget(ctx context.Context, p *recommendPrompt) {
	limit := r.cfg.MaxContextTokens
	knowledge, prior := p.knowledge, p.prior

	p.knowledge, p.prior = nil, nil
	fixed := budget.EstimatePrompt(recommendSystemPrompt, p.render())

	p.knowledge = budget.TrimTail(fixed+budget.Estimate(strings.Join(prior, "; ")), knowledge, limit)
	p.prior = budget.TrimOldest(fixed+budget.Estimate(strings.Join(p.knowledge, "\n")), prior, limit)

	if dropped := len(knowledge) - len(p.knowledge) + len(prior) - len(p.prior); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: trimmed prompt sections to fit context window",
			slog.Int("knowledge_dropped", len(knowledge)-len(p.knowledge)),
			slog.Int("questions_dropped", len(prior)-len(p.prior)),
			slog.Int("max_tokens", limit),
		)
	}
}

func (r *Recommender) persist(ctx context.Context, turn *domain.ConversationTurn) {
	if r.cfg.History == nil {
		return
	}
	if err := r.cfg.History.Append(ctx, turn); err != nil {
		logging.FromContext(ctx).Warn("history: failed to persist turn", slog.Any("error", err))
	}
}

func (r *Recommender) observe(outcome string) {
	if r.cfg.Observe != nil {
		r.cfg.Observe(outcome)
	}
}

// chronological returns the n most recent of newestFirst, oldest first.
func chronological(newestFirst []string, n int) []string {
	out := slices.Clone(newestFirst[:min(len(newestFirst), n)])
	slices.Reverse(out)
	return out
}

func turnContext(req Request, previous []string) domain.TurnContext {
	tc := domain.TurnContext{
		UserID:            req.UserID,
		SessionID:         req.SessionID,
		PreviousQuestions: previous,
	}
	if uc := req.Context; uc != nil {
		tc.Location = uc.Location
		tc.Season = uc.Season
		tc.Preferences = uc.Preferences
		tc.DietaryRestrictions = uc.DietaryRestrictions
		tc.CookingSkill = uc.CookingSkill
	}
	return tc
}
