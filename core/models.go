package core

import (
	"strings"
	"time"
)

// Slot names one vector in an EmbeddingSet.
type Slot string

const (
	// SlotCombined holds the embedding of all semantic fields joined together.
	// It is always present in a valid EmbeddingSet.
	SlotCombined         Slot = "combined"
	SlotTitle            Slot = "title"
	SlotDescription      Slot = "description"
	SlotProblemStatement Slot = "problem_statement"
	SlotMethod           Slot = "method"
)

// FieldSlots lists the per-field slots in the order they are computed.
var FieldSlots = []Slot{
	SlotTitle,
	SlotDescription,
	SlotProblemStatement,
	SlotMethod,
}

// Record is a single entity whose text fields are embedded.
// Records are owned by the ingestion side and never modified here.
// OwnerName is display metadata; it is neither embedded nor fingerprinted.
type Record struct {
	ID               string `json:"id"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	ProblemStatement string `json:"problem_statement,omitempty"`
	Method           string `json:"method,omitempty"`
	OwnerName        string `json:"owner_name,omitempty"`
}

// Field returns the text backing a per-field slot.
// SlotCombined and unknown slots return an empty string.
func (r Record) Field(slot Slot) string {
	switch slot {
	case SlotTitle:
		return r.Title
	case SlotDescription:
		return r.Description
	case SlotProblemStatement:
		return r.ProblemStatement
	case SlotMethod:
		return r.Method
	default:
		return ""
	}
}

// Name returns a display name for progress output: the owner name, else
// the title, else the ID.
func (r Record) Name() string {
	if strings.TrimSpace(r.OwnerName) != "" {
		return r.OwnerName
	}
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.ID
}

// CombinedText joins the non-empty semantic fields into the text embedded
// for SlotCombined. The title appears twice.
func CombinedText(r Record) string {
	parts := make([]string, 0, len(FieldSlots)+1)
	if title := strings.TrimSpace(r.Title); title != "" {
		parts = append(parts, title)
	}
	for _, slot := range FieldSlots {
		if text := strings.TrimSpace(r.Field(slot)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ". ")
}

// Vector is a single embedding.
type Vector []float32

// EmbeddingSet maps slots to vectors. Per-field slots are present only when
// the source field was non-empty.
type EmbeddingSet map[Slot]Vector

// Combined returns the combined vector, or nil if absent.
func (s EmbeddingSet) Combined() Vector {
	return s[SlotCombined]
}

// Clone returns a deep copy of the set.
func (s EmbeddingSet) Clone() EmbeddingSet {
	if s == nil {
		return nil
	}
	out := make(EmbeddingSet, len(s))
	for slot, vec := range s {
		out[slot] = append(Vector(nil), vec...)
	}
	return out
}

// Fingerprint identifies the semantic content of a Record at a point in time.
type Fingerprint string

// CacheEntry pairs an EmbeddingSet with the fingerprint of the record it was
// computed from. The same shape is stored locally and remotely. OwnerName
// and Title are carried along for display and play no part in matching.
type CacheEntry struct {
	RecordID    string       `json:"id"`
	Fingerprint Fingerprint  `json:"fingerprint"`
	Embeddings  EmbeddingSet `json:"embeddings"`
	OwnerName   string       `json:"owner_name,omitempty"`
	Title       string       `json:"title,omitempty"`
}

// Matches reports whether the entry is valid for a record with the given fingerprint.
func (e CacheEntry) Matches(fp Fingerprint) bool {
	return e.Fingerprint != "" && e.Fingerprint == fp
}

// LocalCacheSnapshot is the full local cache. It expires as a whole based on
// CreatedAt; entries carry no timestamps of their own.
type LocalCacheSnapshot struct {
	Entries   map[string]CacheEntry
	CreatedAt time.Time
}

// BatchResult maps record IDs to their embeddings for one reconciliation run.
// Records that failed are absent.
type BatchResult map[string]EmbeddingSet

// Tier identifies which source satisfied a record.
type Tier int

const (
	TierLocal Tier = iota + 1
	TierRemote
	TierCompute
)

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierRemote:
		return "remote"
	case TierCompute:
		return "compute"
	default:
		return "unknown"
	}
}
