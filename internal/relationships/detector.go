package relationships

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// Detector proposes relationship candidates from market question text. It
// never writes: confirming a candidate is a separate, manual operation.
type Detector struct {
	minConfidence float64
	logger        *zap.Logger
}

// DetectorConfig holds detector configuration.
type DetectorConfig struct {
	MinConfidence float64 // candidates below this are dropped
	Logger        *zap.Logger
}

// NewDetector creates a heuristic relationship detector.
func NewDetector(cfg *DetectorConfig) (*Detector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence must be in (0,1]")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Detector{minConfidence: cfg.MinConfidence, logger: cfg.Logger}, nil
}

var (
	whoWinsPattern   = regexp.MustCompile(`(?i)^will\s+(.+?)\s+win\s+(.+?)\??$`)
	subsetPattern    = regexp.MustCompile(`(?i)\b(?:by|over|more than|at least)\s+\d+\+?`)
	yearPattern      = regexp.MustCompile(`\b20\d\d\b`)
	nonWordPattern   = regexp.MustCompile(`[^a-z0-9\s]+`)
	stageProgression = []string{"primary", "nomination", "election"}
)

var stopWords = map[string]bool{
	"will": true, "the": true, "a": true, "an": true, "to": true,
	"of": true, "in": true, "on": true, "by": true, "be": true,
	"is": true, "at": true, "for": true, "and": true, "or": true,
}

// Detect runs every heuristic over the given markets and returns candidates
// at or above the confidence threshold.
func (d *Detector) Detect(markets []*types.Market) []*types.RelationshipCandidate {
	var candidates []*types.RelationshipCandidate
	candidates = append(candidates, detectWhoWinsGroups(markets)...)
	candidates = append(candidates, detectStagePairs(markets)...)
	candidates = append(candidates, detectTimeSequences(markets)...)
	candidates = append(candidates, detectSubsets(markets)...)

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= d.minConfidence {
			kept = append(kept, c)
		}
	}

	d.logger.Info("relationship-candidates-detected",
		zap.Int("markets", len(markets)),
		zap.Int("candidates", len(kept)))
	return kept
}

// detectWhoWinsGroups groups "Will X win <contest>?" questions by contest and
// category; two or more contestants for one contest are mutually exclusive.
func detectWhoWinsGroups(markets []*types.Market) []*types.RelationshipCandidate {
	groups := make(map[string][]string)
	for _, m := range markets {
		match := whoWinsPattern.FindStringSubmatch(m.Question)
		if match == nil {
			continue
		}
		contest := normalize(match[2])
		if contest == "" {
			continue
		}
		key := m.Category + "|" + contest
		groups[key] = append(groups[key], m.ID)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []*types.RelationshipCandidate
	for _, key := range keys {
		ids := groups[key]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		confidence := 0.7
		if len(ids) >= 3 {
			confidence = 0.85
		}
		out = append(out, &types.RelationshipCandidate{
			Kind:       types.RelMutuallyExclusive,
			MarketIDs:  ids,
			GroupID:    slug(key),
			Confidence: confidence,
			Reason:     fmt.Sprintf("%d contestants for the same contest", len(ids)),
		})
	}
	return out
}

// detectStagePairs pairs markets about the same subject at consecutive
// contest stages. Winning a later stage implies winning the earlier one, so
// the earlier-stage market is the parent.
func detectStagePairs(markets []*types.Market) []*types.RelationshipCandidate {
	type staged struct {
		id    string
		stage int
	}
	bySubject := make(map[string][]staged)
	for _, m := range markets {
		sig := signature(m.Question)
		for i, stage := range stageProgression {
			if !containsWord(sig, stage) {
				continue
			}
			subject := removeWord(sig, stage)
			bySubject[subject] = append(bySubject[subject], staged{id: m.ID, stage: i})
			break
		}
	}

	subjects := sortedKeys(bySubject)
	var out []*types.RelationshipCandidate
	for _, subject := range subjects {
		entries := bySubject[subject]
		sort.Slice(entries, func(i, j int) bool { return entries[i].stage < entries[j].stage })
		for i := 0; i+1 < len(entries); i++ {
			if entries[i].stage == entries[i+1].stage {
				continue
			}
			out = append(out, &types.RelationshipCandidate{
				Kind:       types.RelConditional,
				MarketIDs:  []string{entries[i].id, entries[i+1].id},
				Confidence: 0.7,
				Reason: fmt.Sprintf("%s stage precedes %s stage",
					stageProgression[entries[i].stage], stageProgression[entries[i+1].stage]),
			})
		}
	}
	return out
}

// detectTimeSequences pairs markets whose questions differ only in a year
// reference. The earlier year is the parent.
func detectTimeSequences(markets []*types.Market) []*types.RelationshipCandidate {
	type dated struct {
		id   string
		year string
	}
	byBase := make(map[string][]dated)
	for _, m := range markets {
		year := yearPattern.FindString(m.Question)
		if year == "" {
			continue
		}
		base := signature(yearPattern.ReplaceAllString(m.Question, ""))
		if base == "" {
			continue
		}
		byBase[base] = append(byBase[base], dated{id: m.ID, year: year})
	}

	bases := sortedKeys(byBase)
	var out []*types.RelationshipCandidate
	for _, base := range bases {
		entries := byBase[base]
		sort.Slice(entries, func(i, j int) bool { return entries[i].year < entries[j].year })
		for i := 0; i+1 < len(entries); i++ {
			if entries[i].year == entries[i+1].year {
				continue
			}
			out = append(out, &types.RelationshipCandidate{
				Kind:       types.RelTimeSequence,
				MarketIDs:  []string{entries[i].id, entries[i+1].id},
				Confidence: 0.65,
				Reason:     fmt.Sprintf("same question for %s and %s", entries[i].year, entries[i+1].year),
			})
		}
	}
	return out
}

// detectSubsets pairs a qualified question ("by 10+", "more than 300") with
// its unqualified counterpart. The unqualified market is the general parent.
func detectSubsets(markets []*types.Market) []*types.RelationshipCandidate {
	general := make(map[string]string)
	type specific struct {
		id   string
		base string
	}
	var specifics []specific

	for _, m := range markets {
		if subsetPattern.MatchString(m.Question) {
			base := signature(subsetPattern.ReplaceAllString(m.Question, ""))
			specifics = append(specifics, specific{id: m.ID, base: base})
			continue
		}
		general[signature(m.Question)] = m.ID
	}

	var out []*types.RelationshipCandidate
	for _, s := range specifics {
		generalID, ok := general[s.base]
		if !ok || generalID == s.id {
			continue
		}
		out = append(out, &types.RelationshipCandidate{
			Kind:       types.RelSubset,
			MarketIDs:  []string{generalID, s.id},
			Confidence: 0.6,
			Reason:     "qualified variant of a broader question",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketIDs[1] < out[j].MarketIDs[1] })
	return out
}

// signature is the stop-word-filtered, sorted word set of a question.
func signature(question string) string {
	words := strings.Fields(normalize(question))
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

func normalize(s string) string {
	return strings.TrimSpace(nonWordPattern.ReplaceAllString(strings.ToLower(s), " "))
}

func slug(s string) string {
	return strings.Join(strings.Fields(normalize(s)), "-")
}

func containsWord(sig, word string) bool {
	for _, w := range strings.Fields(sig) {
		if w == word {
			return true
		}
	}
	return false
}

func removeWord(sig, word string) string {
	words := strings.Fields(sig)
	kept := words[:0]
	for _, w := range words {
		if w != word {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
