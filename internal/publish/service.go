// Package publish turns drafts into inscribed articles: it encrypts or
// time-locks the content when asked to, inscribes the result and stores the
// article, degrading to a pending article when the ledger is unavailable.
package publish

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/cryptox"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
	"github.com/dmitrijs2005/ordvault/internal/logging"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

const (
	excerptLen   = 200
	maskedText   = "[ENCRYPTED]"
	keyWarning   = "SAVE THIS KEY! It cannot be recovered if lost."
	anonymousID  = "anonymous"
	anonymousTag = "Anonymous"
)

type Inscriber interface {
	Inscribe(ctx context.Context, req inscription.Request) (*inscription.Result, error)
}

type ArticleStore interface {
	Save(ctx context.Context, a *models.Article) error
	Get(ctx context.Context, id string) (*models.Article, error)
	Update(ctx context.Context, id string, patch models.ArticlePatch) (*models.Article, error)
	IncrementViews(ctx context.Context, id string) (*models.Article, error)
	List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
}

type Draft struct {
	Title          string
	Content        string
	Excerpt        string
	Classification models.Classification
	Encrypt        bool
	UnlockAt       *time.Time
	Tags           []string
	AuthorID       string
	AuthorName     string
	Anonymous      bool
}

// Publication is what Publish hands back. DecryptionKey is set only for
// keyed encryption and is never stored anywhere.
type Publication struct {
	Article       *models.Article     `json:"article"`
	Inscription   *inscription.Result `json:"inscriptionDetails,omitempty"`
	DecryptionKey string              `json:"decryptionKey,omitempty"`
	Warning       string              `json:"warning,omitempty"`
}

type Service struct {
	inscriber Inscriber
	articles  ArticleStore
	locker    *cryptox.TimeLocker
	log       logging.Logger
	now       func() time.Time
}

func NewService(inscriber Inscriber, articles ArticleStore, locker *cryptox.TimeLocker, log logging.Logger) *Service {
	if locker == nil {
		locker = cryptox.NewTimeLocker(nil)
	}
	return &Service{
		inscriber: inscriber,
		articles:  articles,
		locker:    locker,
		log:       log.With("module", "publish"),
		now:       time.Now,
	}
}

// Publish encrypts, inscribes and stores a draft.
//
// Whistleblower, anonymous and explicitly encrypted drafts are sealed with a
// fresh random key; a draft with UnlockAt is time-locked instead and gets no
// key. When inscription fails recoverably the article is stored as pending.
func (s *Service) Publish(ctx context.Context, d Draft) (*Publication, error) {
	if err := validateDraft(&d); err != nil {
		return nil, err
	}

	a := &models.Article{
		Title:          d.Title,
		Content:        d.Content,
		Excerpt:        d.Excerpt,
		Classification: d.Classification,
		AuthorID:       d.AuthorID,
		AuthorName:     d.AuthorName,
		Anonymous:      d.Anonymous,
		Tags:           d.Tags,
		PublishedAt:    s.now().UTC(),
	}
	if a.Anonymous {
		a.AuthorID, a.AuthorName = anonymousID, anonymousTag
	}

	pub := &Publication{Article: a}

	needsEncryption := d.Classification == models.ClassificationWhistleblower || d.Anonymous || d.Encrypt
	switch {
	case d.UnlockAt != nil:
		env, err := s.locker.Lock([]byte(d.Content), *d.UnlockAt)
		if err != nil {
			return nil, err
		}
		a.Content = env.Wire()
		a.Encrypted = true
		a.Encryption = &models.EncryptionInfo{
			Algorithm:  env.Algorithm,
			TimeLocked: true,
			UnlockAt:   env.UnlockAt,
			Salt:       env.Salt,
		}
	case needsEncryption:
		env, err := cryptox.Encrypt([]byte(d.Content), nil)
		if err != nil {
			return nil, err
		}
		pub.DecryptionKey = hex.EncodeToString(env.Key)
		pub.Warning = keyWarning
		env.ForgetKey()

		a.Content = env.Wire()
		a.Encrypted = true
		a.Encryption = &models.EncryptionInfo{Algorithm: env.Algorithm}
	}

	if a.Excerpt == "" && !a.Encrypted {
		a.Excerpt = excerpt(d.Content)
	}

	payload, err := inscriptionPayload(a)
	if err != nil {
		return nil, err
	}

	res, err := s.inscriber.Inscribe(ctx, inscription.Request{Payload: payload, ContentType: "application/json"})
	switch {
	case err == nil:
		a.Status = models.StatusPublished
		a.InscriptionID = res.InscriptionID
		a.TxID = res.TxID
		pub.Inscription = res
	case common.IsRecoverable(err):
		s.log.Warn(ctx, "inscription failed, article saved as pending", "kind", common.KindOf(err), "error", err)
		a.Status = models.StatusPending
		a.LastError = err.Error()
	default:
		return nil, err
	}

	if err := s.articles.Save(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "article published", "article_id", a.ID, "status", a.Status,
		"inscription_id", a.InscriptionID, "encrypted", a.Encrypted)
	return pub, nil
}

func validateDraft(d *Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if d.Content == "" {
		return fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	switch d.Classification {
	case "":
		d.Classification = models.ClassificationPublic
	case models.ClassificationPublic, models.ClassificationAuthenticated, models.ClassificationWhistleblower:
	default:
		return fmt.Errorf("%w: unknown classification %q", common.ErrValidation, d.Classification)
	}
	if d.UnlockAt != nil && d.UnlockAt.IsZero() {
		return fmt.Errorf("%w: unlock date is invalid", common.ErrValidation)
	}
	return nil
}

// inscriptionPayload is the JSON document put on the ledger for an article.
// It only depends on stored fields, so pending articles can be re-inscribed.
func inscriptionPayload(a *models.Article) ([]byte, error) {
	return json.Marshal(struct {
		Title          string                `json:"title"`
		Content        string                `json:"content"`
		Classification models.Classification `json:"classification"`
		Encrypted      bool                  `json:"encrypted"`
		Anonymous      bool                  `json:"anonymous"`
		PublishedAt    time.Time             `json:"publishedAt"`
	}{a.Title, a.Content, a.Classification, a.Encrypted, a.Anonymous, a.PublishedAt})
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLen {
		return s
	}
	return string([]rune(s)[:excerptLen])
}

// Get returns an article without its time-lock salt.
func (s *Service) Get(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return public(a), nil
}

// View is Get plus a view count increment.
func (s *Service) View(ctx context.Context, id string) (*models.Article, error) {
	a, err := s.articles.IncrementViews(ctx, id)
	if err != nil {
		return nil, err
	}
	return public(a), nil
}

// List returns articles for display: ciphertext is masked and plaintext is
// cut down to its excerpt.
func (s *Service) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	all, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Article, 0, len(all))
	for _, a := range all {
		v := public(a)
		if v.Encrypted {
			v.Content = maskedText
		} else if v.Excerpt != "" {
			v.Content = v.Excerpt
		} else {
			v.Content = excerpt(v.Content)
		}
		out = append(out, v)
	}
	return out, nil
}

func public(a *models.Article) *models.Article {
	v := *a
	if a.Encryption != nil {
		info := *a.Encryption
		info.Salt = nil
		v.Encryption = &info
	}
	return &v
}

// Unlock opens a time-locked article once its unlock date has passed.
func (s *Service) Unlock(ctx context.Context, id string) (string, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !a.Encrypted || a.Encryption == nil || !a.Encryption.TimeLocked {
		return "", fmt.Errorf("%w: article %s is not time-locked", common.ErrValidation, id)
	}

	env, err := cryptox.ParseWire(a.Content)
	if err != nil {
		return "", err
	}

	plain, err := s.locker.Unlock(ctx, &cryptox.TimeLockEnvelope{
		Envelope:   *env,
		UnlockAt:   a.Encryption.UnlockAt,
		Salt:       a.Encryption.Salt,
		TimeLocked: true,
	})
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Decrypt opens a keyed article with the hex key returned at publish time.
func (s *Service) Decrypt(ctx context.Context, id, keyHex string) (string, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !a.Encrypted {
		return "", fmt.Errorf("%w: article %s is not encrypted", common.ErrValidation, id)
	}
	if a.Encryption != nil && a.Encryption.TimeLocked {
		return "", fmt.Errorf("%w: article %s is time-locked, use unlock", common.ErrValidation, id)
	}

	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return "", fmt.Errorf("%w: decryption key is not hex", common.ErrValidation)
	}
	defer common.WipeByteArray(key)

	plain, err := cryptox.DecryptWire(a.Content, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// RetryPending re-inscribes every pending article and returns how many were
// published. Articles that fail recoverably stay pending for the next run.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.articles.List(ctx, models.ArticleFilter{Status: models.StatusPending})
	if err != nil {
		return 0, err
	}

	published := 0
	var errs []error
	for _, a := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		payload, err := inscriptionPayload(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		res, err := s.inscriber.Inscribe(ctx, inscription.Request{Payload: payload, ContentType: "application/json"})
		if err != nil {
			msg := err.Error()
			if _, uerr := s.articles.Update(ctx, a.ID, models.ArticlePatch{LastError: &msg}); uerr != nil {
				errs = append(errs, uerr)
			}
			if !common.IsRecoverable(err) {
				errs = append(errs, fmt.Errorf("article %s: %w", a.ID, err))
			}
			s.log.Warn(ctx, "pending article still not inscribed", "article_id", a.ID, "kind", common.KindOf(err), "error", err)
			continue
		}

		status := models.StatusPublished
		cleared := ""
		patch := models.ArticlePatch{InscriptionID: &res.InscriptionID, Status: &status, LastError: &cleared, TxID: res.TxID}
		if _, err := s.articles.Update(ctx, a.ID, patch); err != nil {
			errs = append(errs, err)
			continue
		}
		published++
		s.log.Info(ctx, "pending article inscribed", "article_id", a.ID, "inscription_id", res.InscriptionID)
	}

	return published, errors.Join(errs...)
}
