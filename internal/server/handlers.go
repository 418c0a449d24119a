package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/54b3r/farmtable-go/internal/agent"
	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/ingestion"
	"github.com/54b3r/farmtable-go/internal/knowledge"
	"github.com/54b3r/farmtable-go/internal/market"
	"github.com/54b3r/farmtable-go/internal/pricing"
	"github.com/54b3r/farmtable-go/internal/rag"
)

const (
	defaultSearchLimit       = 10
	maxSearchLimit           = 50
	defaultConversationLimit = 20
	maxConversationLimit     = 100
)

// withTimeout bounds AI-backed work by the configured request timeout.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch handles POST /api/produce/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, r, domain.NewValidationError("query", "is required"))
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	var f catalog.Filters
	if req.Filters != nil {
		f = *req.Filters
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	results, err := s.svc.Search.Rank(ctx, req.Query, f, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []rag.ScoredProduce{}
	}
	writeJSON(w, r, http.StatusOK, searchResponse{Results: results, Query: req.Query, Count: len(results)})
}

// handleCreateListing handles POST /api/produce.
func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var in ingestion.NewListing
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	rec, err := s.svc.Listings.Create(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

// handleUpsertProducer handles PUT /api/producers/{id}. The path ID wins
// over any id in the body.
func (s *Server) handleUpsertProducer(w http.ResponseWriter, r *http.Request) {
	var in domain.ProducerInfo
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = r.PathValue("id")
	p, err := s.svc.Listings.RegisterProducer(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// handleRecommend handles POST /api/ai/recommend. A failing AI backend
// yields a 200 with the apology narrative, never an error status.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	res, err := s.svc.Recommend.Recommend(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleMarketAnalysis handles POST /api/ai/market-analysis.
func (s *Server) handleMarketAnalysis(w http.ResponseWriter, r *http.Request) {
	var req market.AnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	res, err := s.svc.Analyst.Analyze(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handlePricingAnalyze handles POST /api/pricing/analyze.
func (s *Server) handlePricingAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	snap, err := s.svc.Pricing.Analyze(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// handlePricingInsights handles GET /api/pricing/insights?producerId=.
func (s *Server) handlePricingInsights(w http.ResponseWriter, r *http.Request) {
	ins, err := s.svc.Pricing.Insights(r.Context(), r.URL.Query().Get("producerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ins)
}

// handleTrends handles GET /api/pricing/trends?category=&location=.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	resp, err := s.svc.Trends.Trends(ctx, market.Filters{
		Category: strings.TrimSpace(q.Get("category")),
		Location: strings.TrimSpace(q.Get("location")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleConversations handles GET /api/conversations. At least one of
// userId and sessionId is required.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, sessionID := strings.TrimSpace(q.Get("userId")), strings.TrimSpace(q.Get("sessionId"))
	if userID == "" && sessionID == "" {
		writeError(w, r, domain.NewValidationError("userId", "userId or sessionId is required"))
		return
	}
	limit, err := queryInt(r, "limit", defaultConversationLimit, maxConversationLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	turns, err := s.svc.History.Recent(r.Context(), userID, sessionID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, r, http.StatusOK, conversationsResponse{Conversations: turns, Count: len(turns)})
}

// handleAnalytics handles GET /api/conversations/analytics.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := s.svc.Analytics.Summary(r.Context(), q.Get("timeRange"), strings.TrimSpace(q.Get("userId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

// handleKnowledgeList handles GET /api/knowledge. With q it searches,
// otherwise it lists the newest entries.
func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", knowledge.DefaultSearchLimit, maxSearchLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if query := strings.TrimSpace(q.Get("q")); query != "" {
		ctx, cancel := s.withTimeout(r)
		defer cancel()
		results, err := s.svc.Knowledge.Search(ctx, query, strings.TrimSpace(q.Get("category")), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if results == nil {
			results = []rag.ScoredKnowledge{}
		}
		writeJSON(w, r, http.StatusOK, knowledgeSearchResponse{Results: results, Query: query, Count: len(results)})
		return
	}

	entries, err := s.svc.Knowledge.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.KnowledgeEntry{}
	}
	writeJSON(w, r, http.StatusOK, knowledgeListResponse{Entries: entries, Count: len(entries)})
}

// handleKnowledgeCreate handles POST /api/knowledge.
func (s *Server) handleKnowledgeCreate(w http.ResponseWriter, r *http.Request) {
	var in knowledge.NewEntry
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	e, err := s.svc.Knowledge.Create(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}
