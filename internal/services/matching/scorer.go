package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/merchline/matchbox/internal/models"
)

// Heuristic tuning knobs. These are operational settings, not business rules:
// override any of them via config, zero values fall back to the defaults.
type Config struct {
	ExactAmountTolerance decimal.Decimal // default: 0.01
	CloseAmountTolerance decimal.Decimal // default: 5.00

	SameDayWindow   time.Duration // default: 24h
	CloseDateWindow time.Duration // default: 72h

	NameSimilarityMin float64 // default: 0.7

	WeightExactAmount float64 // default: 0.40
	WeightCloseAmount float64 // default: 0.20
	WeightCurrency    float64 // default: 0.15
	WeightDate        float64 // default: 0.15
	WeightName        float64 // default: 0.10

	SuggestionThreshold float64 // default: 0.30 (strictly greater retained)
	AutoMapThreshold    float64 // default: 0.80 (strictly greater auto-mapped)

	CandidateWindow time.Duration // default: 168h (±7 days)
	MaxSuggestions  int           // default: 5
}

func DefaultConfig() Config {
	return Config{
		ExactAmountTolerance: decimal.New(1, -2),
		CloseAmountTolerance: decimal.New(5, 0),

		SameDayWindow:   24 * time.Hour,
		CloseDateWindow: 72 * time.Hour,

		NameSimilarityMin: 0.7,

		WeightExactAmount: 0.40,
		WeightCloseAmount: 0.20,
		WeightCurrency:    0.15,
		WeightDate:        0.15,
		WeightName:        0.10,

		SuggestionThreshold: 0.30,
		AutoMapThreshold:    0.80,

		CandidateWindow: 7 * 24 * time.Hour,
		MaxSuggestions:  5,
	}
}

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ExactAmountTolerance.IsZero() {
		cfg.ExactAmountTolerance = def.ExactAmountTolerance
	}
	if cfg.CloseAmountTolerance.IsZero() {
		cfg.CloseAmountTolerance = def.CloseAmountTolerance
	}
	if cfg.SameDayWindow <= 0 {
		cfg.SameDayWindow = def.SameDayWindow
	}
	if cfg.CloseDateWindow <= 0 {
		cfg.CloseDateWindow = def.CloseDateWindow
	}
	if cfg.CloseDateWindow < cfg.SameDayWindow {
		cfg.CloseDateWindow = cfg.SameDayWindow
	}
	if cfg.NameSimilarityMin <= 0 {
		cfg.NameSimilarityMin = def.NameSimilarityMin
	}
	if cfg.WeightExactAmount <= 0 {
		cfg.WeightExactAmount = def.WeightExactAmount
	}
	if cfg.WeightCloseAmount <= 0 {
		cfg.WeightCloseAmount = def.WeightCloseAmount
	}
	if cfg.WeightCurrency <= 0 {
		cfg.WeightCurrency = def.WeightCurrency
	}
	if cfg.WeightDate <= 0 {
		cfg.WeightDate = def.WeightDate
	}
	if cfg.WeightName <= 0 {
		cfg.WeightName = def.WeightName
	}
	if cfg.SuggestionThreshold <= 0 {
		cfg.SuggestionThreshold = def.SuggestionThreshold
	}
	if cfg.AutoMapThreshold <= 0 {
		cfg.AutoMapThreshold = def.AutoMapThreshold
	}
	if cfg.CandidateWindow <= 0 {
		cfg.CandidateWindow = def.CandidateWindow
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = def.MaxSuggestions
	}
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config { return s.cfg }

// CandidateWindow is the pre-filter interval around the fulfillment order's
// creation date; only storefront orders inside it are worth scoring.
func (s *Scorer) CandidateWindow(createdAt time.Time) (from, to time.Time) {
	return createdAt.Add(-s.cfg.CandidateWindow), createdAt.Add(s.cfg.CandidateWindow)
}

// Score computes the weighted similarity between one fulfillment order and
// one storefront order, in [0,1], with the human-readable contributing
// factors in contribution order.
func (s *Scorer) Score(f *models.FulfillmentOrder, c *models.StorefrontOrder) (float64, []string) {
	var score float64
	var reasons []string

	// An exact amount is also a close amount, so the exact branch carries
	// both weights. A perfect pair lands at exactly 1.0.
	diff := f.TotalAmount.Sub(c.TotalAmount).Abs()
	switch {
	case diff.LessThan(s.cfg.ExactAmountTolerance):
		score += s.cfg.WeightExactAmount + s.cfg.WeightCloseAmount
		reasons = append(reasons, "Exact amount match")
	case diff.LessThan(s.cfg.CloseAmountTolerance):
		score += s.cfg.WeightCloseAmount
		reasons = append(reasons, "Similar amount")
	}

	if f.Currency != "" && f.Currency == c.Currency {
		score += s.cfg.WeightCurrency
		reasons = append(reasons, "Same currency")
	}

	gap := f.CreatedAt.Sub(c.OrderedAt)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap <= s.cfg.SameDayWindow:
		score += s.cfg.WeightDate
		reasons = append(reasons, "Same day order")
	case gap <= s.cfg.CloseDateWindow:
		score += s.cfg.WeightDate
		reasons = append(reasons, "Close order date")
	}

	if nameSimilarity(f.RecipientName, c.CustomerName) > s.cfg.NameSimilarityMin {
		score += s.cfg.WeightName
		reasons = append(reasons, "Similar customer name")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// Suggest scores every candidate, drops those at or below the suggestion
// threshold and returns the top matches, best first.
func (s *Scorer) Suggest(f *models.FulfillmentOrder, candidates []*models.StorefrontOrder) []models.SuggestedMatch {
	out := make([]models.SuggestedMatch, 0, len(candidates))
	for _, c := range candidates {
		score, reasons := s.Score(f, c)
		if score <= s.cfg.SuggestionThreshold {
			continue
		}
		out = append(out, models.SuggestedMatch{
			StorefrontOrderID: c.ID,
			OrderNumber:       c.OrderNumber,
			CustomerName:      c.CustomerName,
			TotalAmount:       c.TotalAmount,
			Currency:          c.Currency,
			OrderedAt:         c.OrderedAt,
			MatchScore:        score,
			MatchReasons:      reasons,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	if len(out) > s.cfg.MaxSuggestions {
		out = out[:s.cfg.MaxSuggestions]
	}
	return out
}

// AutoMappable reports whether a suggestion clears the confidence bar for
// unattended mapping.
func (s *Scorer) AutoMappable(score float64) bool {
	return score > s.cfg.AutoMapThreshold
}

// nameSimilarity is an edit-distance ratio over lower-cased names. Two empty
// names are deliberately non-matching: silence on both sides is no evidence.
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}

	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}

	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(longer)
}
