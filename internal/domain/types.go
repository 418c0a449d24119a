// Package domain holds the data model of the marketplace core: produce
// listings, producers, knowledge entries, conversation turns and the derived
// pricing and trend views. Persistence formats live with the repositories;
// these structs are what business logic passes around.
package domain

import (
	"strings"
	"time"
)

// YearRound is the season tag for produce that is always available.
const YearRound = "Year-round"

// DefaultUnit is the unit of measure assumed when a listing names none.
const DefaultUnit = "kg"

// ProducerInfo is the producer-level data used to fill gaps in a listing.
type ProducerInfo struct {
	// ID is the producer identity.
	ID string `json:"id,omitempty" yaml:"id"`
	// Name is the farm or producer display name.
	Name string `json:"name" yaml:"name"`
	// Location is the producer's default free-text location.
	Location string `json:"location,omitempty" yaml:"location"`
	// FarmingMethod is the producer's default farming method.
	FarmingMethod string `json:"farmingMethod,omitempty" yaml:"farmingMethod"`
}

// ProduceRecord is a single produce listing with its precomputed embedding.
type ProduceRecord struct {
	// ID is the listing identity (UUID string).
	ID string `json:"id"`
	// Name is the produce name, e.g. "Heirloom Carrots".
	Name string `json:"name"`
	// Description is authored or AI-generated copy.
	Description string `json:"description,omitempty"`
	// Price is the price per Unit.
	Price float64 `json:"price"`
	// Quantity is the amount available, in Unit.
	Quantity float64 `json:"quantity"`
	// Unit is the unit-of-measure label.
	Unit string `json:"unit"`
	// Category is the free-text category, e.g. "Vegetables".
	Category string `json:"category,omitempty"`
	// SubCategory refines Category, e.g. "Root Vegetables".
	SubCategory string `json:"subCategory,omitempty"`
	// Season is the season tag ("Spring", "Summer", "Fall", "Winter", "Year-round").
	Season string `json:"season,omitempty"`
	// FarmingMethod is the item-level farming method tag.
	FarmingMethod string `json:"farmingMethod,omitempty"`
	// Location is the item-level free-text location.
	Location string `json:"location,omitempty"`
	// NutritionalHighlights lists notable nutrients.
	NutritionalHighlights []string `json:"nutritionalHighlights,omitempty"`
	// CommonUses lists typical culinary uses.
	CommonUses []string `json:"commonUses,omitempty"`
	// PreparationTips is free-text preparation advice.
	PreparationTips string `json:"preparationTips,omitempty"`
	// StorageInstructions is free-text storage advice.
	StorageInstructions string `json:"storageInstructions,omitempty"`
	// ShelfLife is free-text shelf life, e.g. "2-3 weeks refrigerated".
	ShelfLife string `json:"shelfLife,omitempty"`
	// Embedding is the description embedding. Empty means not yet embedded.
	Embedding []float32 `json:"-"`
	// EmbeddingText is the exact text that produced Embedding.
	EmbeddingText string `json:"-"`
	// EmbeddingModel names the model that produced Embedding.
	EmbeddingModel string `json:"-"`
	// AIGeneratedDescription is true when Description came from the model.
	AIGeneratedDescription bool `json:"aiGenerated"`
	// ProducerID references the producer.
	ProducerID string `json:"producerId,omitempty"`
	// Producer carries the producer defaults joined at read time.
	Producer ProducerInfo `json:"-"`
	// Active is false for delisted items.
	Active bool `json:"-"`
	// CreatedAt is when the listing was created.
	CreatedAt time.Time `json:"-"`
}

// EffectiveLocation returns the item location, or the producer's when the
// item names none.
func (r *ProduceRecord) EffectiveLocation() string {
	if strings.TrimSpace(r.Location) != "" {
		return r.Location
	}
	return r.Producer.Location
}

// EffectiveFarmingMethod returns the item farming method, or the producer's
// default when the item names none.
func (r *ProduceRecord) EffectiveFarmingMethod() string {
	if strings.TrimSpace(r.FarmingMethod) != "" {
		return r.FarmingMethod
	}
	return r.Producer.FarmingMethod
}

// EffectiveUnit returns Unit or DefaultUnit.
func (r *ProduceRecord) EffectiveUnit() string {
	if r.Unit == "" {
		return DefaultUnit
	}
	return r.Unit
}

// HasEmbedding reports whether the record can take part in vector ranking.
func (r *ProduceRecord) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// KnowledgeEntry is a farming knowledge snippet used to ground narratives.
type KnowledgeEntry struct {
	// ID is the entry identity (UUID string).
	ID string `json:"id"`
	// Title is the entry headline.
	Title string `json:"title"`
	// Content is the body text.
	Content string `json:"content"`
	// Category groups entries, e.g. "storage", "nutrition".
	Category string `json:"category"`
	// Tags are free-form labels.
	Tags []string `json:"tags"`
	// Embedding is the entry embedding.
	Embedding []float32 `json:"-"`
	// Active is false for retired entries.
	Active bool `json:"isActive"`
	// CreatedAt is when the entry was created.
	CreatedAt time.Time `json:"createdAt"`
}

// TurnContext is the typed form of the context stored with a conversation turn.
type TurnContext struct {
	UserID              string   `json:"userId,omitempty"`
	SessionID           string   `json:"sessionId,omitempty"`
	PreviousQuestions   []string `json:"previousQuestions,omitempty"`
	Location            string   `json:"location,omitempty"`
	Season              string   `json:"season,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
	CookingSkill        string   `json:"cookingSkill,omitempty"`
}

// PriceRange is an inclusive price interval.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TurnMetadata is the typed form of the metadata stored with a conversation
// turn. Every field is derived from the ranked recommendations.
type TurnMetadata struct {
	ProduceIDs     []string    `json:"produceIds,omitempty"`
	Categories     []string    `json:"categories,omitempty"`
	PriceRange     *PriceRange `json:"priceRange,omitempty"`
	FarmingMethods []string    `json:"farmingMethods,omitempty"`
	Seasons        []string    `json:"seasons,omitempty"`
	// ResponseTimeMS is the wall-clock latency of the request in milliseconds.
	ResponseTimeMS int64 `json:"responseTime,omitempty"`
	// ModelUsed identifies the narrative model.
	ModelUsed string `json:"modelUsed,omitempty"`
}

// ConversationTurn is one recommendation exchange. Turns are immutable once
// written.
type ConversationTurn struct {
	ID        int64        `json:"id"`
	Question  string       `json:"question"`
	Response  string       `json:"response"`
	UserID    string       `json:"userId,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Context   TurnContext  `json:"context"`
	Metadata  TurnMetadata `json:"metadata"`
	CreatedAt time.Time    `json:"createdAt"`
}
