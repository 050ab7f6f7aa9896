package models

import "time"

type Classification string

const (
	ClassificationPublic        Classification = "public"
	ClassificationAuthenticated Classification = "authenticated"
	ClassificationWhistleblower Classification = "whistleblower"
)

type ArticleStatus string

const (
	StatusPublished ArticleStatus = "published"
	// StatusPending marks an article whose inscription did not complete and
	// will be retried.
	StatusPending ArticleStatus = "pending"
)

// Article is a published content item. Content holds the wire form of the
// ciphertext when Encrypted is set. No key material is ever stored here.
type Article struct {
	ID             string          `json:"id"`
	InscriptionID  string          `json:"ordinalId,omitempty"`
	TxID           *string         `json:"txid"`
	Status         ArticleStatus   `json:"status"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	Excerpt        string          `json:"excerpt"`
	Classification Classification  `json:"classification"`
	Encrypted      bool            `json:"encrypted"`
	Encryption     *EncryptionInfo `json:"encryptionData"`
	AuthorID       string          `json:"authorId"`
	AuthorName     string          `json:"authorName"`
	Anonymous      bool            `json:"anonymous"`
	Tags           []string        `json:"tags"`
	PublishedAt    time.Time       `json:"publishedAt"`
	UpdatedAt      time.Time       `json:"updatedAt,omitempty"`
	Views          int             `json:"views"`
	LastError      string          `json:"lastError,omitempty"`
}

// EncryptionInfo is the persisted, keyless part of an encryption envelope.
type EncryptionInfo struct {
	Algorithm  string    `json:"algorithm"`
	TimeLocked bool      `json:"timeLocked"`
	UnlockAt   time.Time `json:"unlockDate,omitempty"`
	Salt       []byte    `json:"salt,omitempty"`
}

// ArticlePatch is a partial update; nil fields are left untouched.
type ArticlePatch struct {
	InscriptionID *string
	TxID          *string
	Status        *ArticleStatus
	LastError     *string
}

type ArticleFilter struct {
	Classification Classification
	Author         string
	Status         ArticleStatus
}

func (f ArticleFilter) Match(a *Article) bool {
	if f.Classification != "" && a.Classification != f.Classification {
		return false
	}
	if f.Author != "" && a.AuthorID != f.Author && a.AuthorName != f.Author {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
