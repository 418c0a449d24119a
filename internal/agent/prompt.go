package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/54b3r/farmtable-go/internal/rag"
)

// recommendSystemPrompt frames every recommendation completion.
const recommendSystemPrompt = "You are a knowledgeable farm-to-table assistant helping customers find the best fresh produce for their needs."

// ApologyResponse is returned instead of a narrative when completion fails.
const ApologyResponse = "I'm having trouble connecting to my knowledge base right now. Please try again in a moment."

// promptHistoryDepth is how many prior questions reach the prompt.
const promptHistoryDepth = 3

// recommendPrompt holds the sections of a recommendation prompt. Prior
// questions and knowledge snippets are optional and may be trimmed to fit
// the context budget; everything else is fixed.
type recommendPrompt struct {
	question  string
	ctx       *UserContext
	produce   []string
	prior     []string
	knowledge []string
}

func newRecommendPrompt(question string, uc *UserContext, recs []rag.ScoredProduce, prior []string, knowledge []rag.ScoredKnowledge) *recommendPrompt {
	p := &recommendPrompt{question: question, ctx: uc, prior: prior}
	for i := range recs {
		p.produce = append(p.produce, produceLine(&recs[i]))
	}
	for _, k := range knowledge {
		p.knowledge = append(p.knowledge, "- "+k.Title+": "+k.Content)
	}
	return p
}

// produceLine formats a candidate as "name - price/unit, qty available, by producer".
func produceLine(r *rag.ScoredProduce) string {
	unit := r.EffectiveUnit()
	line := fmt.Sprintf("- %s - %s pesos/%s, %s %s available",
		r.Name, formatNumber(r.Price), unit, formatNumber(r.Quantity), unit)
	if r.Producer.Name != "" {
		line += ", by " + r.Producer.Name
	}
	return line
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// render builds the user prompt.
func (p *recommendPrompt) render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A customer is asking: %q\n", p.question)

	if ctxLines := p.contextLines(); len(ctxLines) > 0 {
		sb.WriteString("\nCustomer context:\n")
		sb.WriteString(strings.Join(ctxLines, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\nAvailable produce:\n")
	if len(p.produce) == 0 {
		sb.WriteString("(no matching listings)\n")
	} else {
		sb.WriteString(strings.Join(p.produce, "\n"))
		sb.WriteString("\n")
	}

	if len(p.knowledge) > 0 {
		sb.WriteString("\nRelevant farming knowledge:\n")
		sb.WriteString(strings.Join(p.knowledge, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\nRecommend the best items for their needs. Mention the producers and explain why each item fits. " +
		"Keep the answer conversational and under 150 words. If nothing matches, suggest the closest alternatives available.")
	return sb.String()
}

func (p *recommendPrompt) contextLines() []string {
	var lines []string
	if uc := p.ctx; uc != nil {
		if len(uc.Preferences) > 0 {
			lines = append(lines, "Preferences: "+strings.Join(uc.Preferences, ", "))
		}
		if uc.Location != "" {
			lines = append(lines, "Location: "+uc.Location)
		}
		if len(uc.DietaryRestrictions) > 0 {
			lines = append(lines, "Dietary restrictions: "+strings.Join(uc.DietaryRestrictions, ", "))
		}
		if uc.CookingSkill != "" {
			lines = append(lines, "Cooking skill: "+uc.CookingSkill)
		}
	}
	if len(p.prior) > 0 {
		lines = append(lines, "Previous questions: "+strings.Join(p.prior, "; "))
	}
	return lines
}
