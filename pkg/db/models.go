package db

import "time"

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// DocumentType distinguishes running text from vocabulary lists.
type DocumentType string

const (
	DocumentText           DocumentType = "text"
	DocumentVocabularyList DocumentType = "vocabulary_list"
)

// Document is an ingested text, unique by content fingerprint.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	FilePath    string         `json:"file_path,omitempty"`
	Fingerprint string         `json:"fingerprint"`
	FileSize    int64          `json:"file_size"`
	Type        DocumentType   `json:"document_type"`
	Status      DocumentStatus `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DictionaryEntry is one (word, part of speech) row of the reference dictionary.
type DictionaryEntry struct {
	ID         string         `json:"id"`
	Word       string         `json:"word"`
	Lemma      string         `json:"lemma"`
	POS        string         `json:"pos"`
	Definition string         `json:"definition,omitempty"`
	Rank       int            `json:"rank,omitempty"`
	Difficulty int            `json:"difficulty,omitempty"`
	Provenance map[string]any `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// MatchState records the outcome of dictionary matching for a Word.
type MatchState string

const (
	MatchUnmatched MatchState = "unmatched"
	MatchFound     MatchState = "found"
	MatchNotFound  MatchState = "not_found"
)

// PersonalStatus is a learner-assigned mastery label.
type PersonalStatus string

const (
	PersonalNew    PersonalStatus = "new"
	PersonalLearn  PersonalStatus = "learn"
	PersonalKnow   PersonalStatus = "know"
	PersonalMaster PersonalStatus = "master"
)

// PersonalStatuses lists every status in mastery order.
var PersonalStatuses = []PersonalStatus{PersonalNew, PersonalLearn, PersonalKnow, PersonalMaster}

// Valid reports whether s is a known status.
func (s PersonalStatus) Valid() bool {
	switch s {
	case PersonalNew, PersonalLearn, PersonalKnow, PersonalMaster:
		return true
	}
	return false
}

// Word is the lemma-keyed hub record. All surface forms sharing a lemma
// collapse onto one Word.
type Word struct {
	ID                string         `json:"id"`
	SurfaceForm       string         `json:"surface_form"`
	Lemma             string         `json:"lemma"`
	NormalizedForm    string         `json:"normalized_form"`
	Features          string         `json:"features"` // JSON
	DictionaryEntryID string         `json:"dictionary_entry_id,omitempty"`
	MatchState        MatchState     `json:"match_state"`
	Rank              *int           `json:"rank,omitempty"`
	Difficulty        *int           `json:"difficulty,omitempty"`
	PersonalStatus    PersonalStatus `json:"personal_status"`
	PersonalNotes     string         `json:"personal_notes,omitempty"`
	StatusUpdatedAt   *time.Time     `json:"status_updated_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// WordForm is an observed spelling of a Word. Rows are kept per document;
// listings sum them over documents and leave DocumentID empty.
type WordForm struct {
	DocumentID   string    `json:"document_id,omitempty"`
	WordID       string    `json:"word_id"`
	SurfaceForm  string    `json:"surface_form"`
	Observations int       `json:"observations"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// Occurrence is the per (document, word) frequency row.
type Occurrence struct {
	DocumentID    string  `json:"document_id"`
	WordID        string  `json:"word_id"`
	Frequency     int     `json:"frequency"`
	TF            float64 `json:"tf"`
	Positions     []int   `json:"positions,omitempty"`
	FirstPosition *int    `json:"first_position,omitempty"`
	LastPosition  *int    `json:"last_position,omitempty"`
}

// Wordlist is a named collection of dictionary entries.
type Wordlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	WordCount   int       `json:"word_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a dictionary entry to a wordlist.
type Membership struct {
	DictionaryEntryID string    `json:"dictionary_entry_id,omitempty"`
	WordlistID        string    `json:"wordlist_id"`
	Confidence        float64   `json:"confidence"`
	OriginalWord      string    `json:"original_word"`
	MatchedWord       string    `json:"matched_word"`
	CreatedAt         time.Time `json:"created_at"`
}
