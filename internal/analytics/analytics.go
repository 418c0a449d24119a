// Package analytics summarizes stored conversation turns for the producer
// dashboard: volume, latency, active users, frequent questions, popular
// categories and a per-day trend.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/store"
)

const (
	topN         = 5
	recentN      = 10
	defaultRange = "7d"
)

var ranges = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// ParseRange maps a range label to its label and window. Unknown labels
// resolve to the 7-day window.
func ParseRange(label string) (string, time.Duration) {
	if d, ok := ranges[label]; ok {
		return label, d
	}
	return defaultRange, ranges[defaultRange]
}

// QuestionCount is a normalized question and how often it was asked.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// CategoryCount is a category and how many turns touched it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DayCount is the number of turns on one UTC calendar day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// RecentTurn is the dashboard view of a turn.
type RecentTurn struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Response  string `json:"response"`
	CreatedAt string `json:"createdAt"`
	UserID    string `json:"userId,omitempty"`
}

// Summary is the analytics response body.
type Summary struct {
	TotalConversations  int             `json:"totalConversations"`
	AverageResponseTime int64           `json:"averageResponseTime"`
	ActiveUsers         int             `json:"activeUsers"`
	TopQuestions        []QuestionCount `json:"topQuestions"`
	PopularCategories   []CategoryCount `json:"popularCategories"`
	RecentConversations []RecentTurn    `json:"recentConversations"`
	ConversationTrends  []DayCount      `json:"conversationTrends"`
	TimeRange           string          `json:"timeRange"`
}

// Summarize computes the Summary over turns, which must be newest-first.
// Turns created after now are ignored.
func Summarize(turns []domain.ConversationTurn, timeRange string, now time.Time) Summary {
	s := Summary{
		TimeRange:           timeRange,
		TopQuestions:        []QuestionCount{},
		PopularCategories:   []CategoryCount{},
		RecentConversations: []RecentTurn{},
		ConversationTrends:  []DayCount{},
	}

	var (
		latencyTotal, latencyCount int64
		users                      = map[string]struct{}{}
		questions                  = newCounter()
		categories                 = newCounter()
		days                       = map[string]int{}
	)

	for _, t := range turns {
		if t.CreatedAt.After(now) {
			continue
		}
		s.TotalConversations++
		if t.UserID != "" {
			users[t.UserID] = struct{}{}
		}
		if t.Metadata.ResponseTimeMS > 0 {
			latencyTotal += t.Metadata.ResponseTimeMS
			latencyCount++
		}
		for _, c := range t.Metadata.Categories {
			categories.add(c)
		}
		if q := strings.ToLower(strings.TrimSpace(t.Question)); q != "" {
			questions.add(q)
		}
		days[t.CreatedAt.UTC().Format(time.DateOnly)]++

		if len(s.RecentConversations) < recentN {
			s.RecentConversations = append(s.RecentConversations, RecentTurn{
				ID:        t.ID,
				Question:  t.Question,
				Response:  t.Response,
				CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
				UserID:    t.UserID,
			})
		}
	}

	if latencyCount > 0 {
		s.AverageResponseTime = int64(math.Round(float64(latencyTotal) / float64(latencyCount)))
	}
	s.ActiveUsers = len(users)

	for _, e := range questions.top(topN) {
		s.TopQuestions = append(s.TopQuestions, QuestionCount{Question: e.key, Count: e.n})
	}
	for _, e := range categories.top(topN) {
		s.PopularCategories = append(s.PopularCategories, CategoryCount{Category: e.key, Count: e.n})
	}

	for d, n := range days {
		s.ConversationTrends = append(s.ConversationTrends, DayCount{Date: d, Count: n})
	}
	sort.Slice(s.ConversationTrends, func(i, j int) bool {
		return s.ConversationTrends[i].Date < s.ConversationTrends[j].Date
	})
	return s
}

// Service loads turns from the conversation store and summarizes them.
type Service struct {
	store store.ConversationStore
	now   func() time.Time
}

// NewService returns a Service reading from st.
func NewService(st store.ConversationStore) *Service {
	return &Service{store: st, now: time.Now}
}

// Summary returns the analytics for the window named by timeRange,
// optionally restricted to one user.
func (s *Service) Summary(ctx context.Context, timeRange, userID string) (Summary, error) {
	label, window := ParseRange(timeRange)
	now := s.now()
	turns, err := s.store.Since(ctx, now.Add(-window), userID)
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: load turns: %w", err)
	}
	return Summarize(turns, label, now), nil
}

type entry struct {
	key string
	n   int
}

// counter counts keys, remembering first-seen order for stable ties.
type counter struct {
	idx     map[string]int
	entries []entry
}

func newCounter() *counter { return &counter{idx: map[string]int{}} }

func (c *counter) add(key string) {
	if i, ok := c.idx[key]; ok {
		c.entries[i].n++
		return
	}
	c.idx[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, n: 1})
}

func (c *counter) top(n int) []entry {
	out := append([]entry(nil), c.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].n > out[j].n })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
