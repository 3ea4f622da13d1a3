// Package dedup groups chapters that share a content hash and decides
// which member of each group is preferred. The same chapter often arrives
// twice — once as a standalone upload, once inside a textbook — and search
// should surface it exactly once.
//
// Deduplication marks rows, it never deletes them. Group and winner
// assignment are deterministic functions of the inputs, so re-running over
// an already-marked corpus converges to the same state.
package dedup

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
)

// Candidate is one chapter as seen by the deduplicator.
type Candidate struct {
	ID          string
	ContentHash string
	SourceType  string // "standalone_chapter", "research_paper", "textbook_chapter"
	CreatedAt   int64  // unix seconds, tie-breaker before ID
}

// Assignment is the deduplication verdict for one chapter.
type Assignment struct {
	ID              string
	IsDuplicate     bool
	DuplicateOfID   string // empty for the preferred member
	DuplicateGroup  string
	PreferenceScore float64
}

// Config configures preference scoring.
type Config struct {
	// Preference maps source type to score; higher wins. Defaults:
	// standalone_chapter 3, research_paper 2, textbook_chapter 1.
	Preference map[string]float64
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Preference == nil {
		c.Preference = map[string]float64{
			"standalone_chapter": 3,
			"research_paper":     2,
			"textbook_chapter":   1,
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Deduplicator assigns duplicate groups.
type Deduplicator struct {
	cfg Config
}

// New creates a Deduplicator.
func New(cfg Config) *Deduplicator {
	cfg.defaults()
	return &Deduplicator{cfg: cfg}
}

// Run groups candidates by content hash and returns an assignment per
// member of every group with two or more members. Singletons need no
// marking and are omitted.
func (d *Deduplicator) Run(cands []Candidate) []Assignment {
	groups := make(map[string][]Candidate)
	for _, c := range cands {
		if c.ContentHash == "" {
			continue
		}
		groups[c.ContentHash] = append(groups[c.ContentHash], c)
	}

	var out []Assignment
	for hash, members := range groups {
		if len(members) < 2 {
			continue
		}
		out = append(out, d.assign(hash, members)...)
	}

	// Deterministic output order for callers that apply in bulk.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if len(out) > 0 {
		d.cfg.Logger.Info("dedup: marked duplicate groups",
			"chapters", len(out), "groups", countGroups(out))
	}
	return out
}

// assign picks the preferred member of one group and marks the rest. The
// winner is the highest preference score; ties go to the earliest created,
// then the smallest ID, so the verdict is stable across runs.
func (d *Deduplicator) assign(hash string, members []Candidate) []Assignment {
	sort.Slice(members, func(i, j int) bool {
		si, sj := d.score(members[i]), d.score(members[j])
		if si != sj {
			return si > sj
		}
		if members[i].CreatedAt != members[j].CreatedAt {
			return members[i].CreatedAt < members[j].CreatedAt
		}
		return members[i].ID < members[j].ID
	})

	group := GroupID(hash)
	winner := members[0]

	out := make([]Assignment, 0, len(members))
	out = append(out, Assignment{
		ID:              winner.ID,
		DuplicateGroup:  group,
		PreferenceScore: d.score(winner),
	})
	for _, m := range members[1:] {
		out = append(out, Assignment{
			ID:              m.ID,
			IsDuplicate:     true,
			DuplicateOfID:   winner.ID,
			DuplicateGroup:  group,
			PreferenceScore: d.score(m),
		})
	}
	return out
}

func (d *Deduplicator) score(c Candidate) float64 {
	return d.cfg.Preference[c.SourceType]
}

// GroupID derives the duplicate group identifier from the content hash.
// Deriving it rather than generating it keeps re-runs idempotent: the same
// content always lands in the same group.
func GroupID(contentHash string) string {
	sum := sha256.Sum256([]byte("dupgroup:" + contentHash))
	return fmt.Sprintf("dg_%x", sum[:8])
}

func countGroups(as []Assignment) int {
	seen := make(map[string]struct{})
	for _, a := range as {
		seen[a.DuplicateGroup] = struct{}{}
	}
	return len(seen)
}
