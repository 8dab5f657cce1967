package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
	"github.com/kravdesk/kravdesk-backend/internal/domain"
	"github.com/kravdesk/kravdesk-backend/internal/modules/krav/steps"
	apperrors "github.com/kravdesk/kravdesk-backend/internal/pkg/errors"
	"github.com/kravdesk/kravdesk-backend/internal/platform/envutil"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/platform/openai"
)

// UserEdit carries the reviewer's status and comment captured during a
// comparison review, keyed by RequirementKey for reattachment at commit.
type UserEdit struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

type ImportService interface {
	// Compare extracts drafts from an uploaded file and diffs them against
	// the persisted, grouped corpus without writing anything.
	Compare(ctx context.Context, rows []steps.Row) ([]steps.CompareResult, error)

	// Commit re-extracts the same file, reattaches user edits by
	// RequirementKey, and persists the result: existing requirements are
	// merged (occurrences, organizations, last seen), new ones created.
	Commit(ctx context.Context, fileName, organization string, rows []steps.Row, edits map[string]UserEdit) (*domain.ImportRun, error)

	// GetRun returns one import run's bookkeeping row.
	GetRun(ctx context.Context, id uuid.UUID) (*domain.ImportRun, error)
}

type importService struct {
	db           *gorm.DB
	log          *logger.Logger
	requirements repos.RequirementRepo
	mappings     repos.CategoryMappingRepo
	runs         repos.ImportRunRepo
	ai           openai.Client
	notifier     ProgressNotifier
	extractorCfg steps.ExtractorConfig
}

func NewImportService(db *gorm.DB, log *logger.Logger, requirements repos.RequirementRepo, mappings repos.CategoryMappingRepo, runs repos.ImportRunRepo, ai openai.Client, notifier ProgressNotifier) (ImportService, error) {
	if db == nil || log == nil || requirements == nil || mappings == nil || runs == nil {
		return nil, fmt.Errorf("import service: missing deps")
	}
	cfg := steps.DefaultExtractorConfig()
	if path := envutil.String("EXTRACTOR_CONFIG_PATH", ""); path != "" {
		loaded, err := steps.LoadExtractorConfig(path)
		if err != nil {
			log.Warn("extractor config not loaded, using defaults", "path", path, "error", err.Error())
		} else {
			cfg = loaded
		}
	}
	return &importService{
		db:           db,
		log:          log.With("service", "ImportService"),
		requirements: requirements,
		mappings:     mappings,
		runs:         runs,
		ai:           ai,
		notifier:     notifier,
		extractorCfg: cfg,
	}, nil
}

func (s *importService) newNormalizer() (*steps.CategoryNormalizer, error) {
	cache := steps.NewCategoryCache(s.mappings)
	return steps.NewCategoryNormalizer(steps.CategoryNormalizerDeps{
		Mappings: s.mappings,
		AI:       s.ai,
		Log:      s.log,
		Cache:    cache,
	})
}

// normalizeDrafts resolves each draft's preceding category to its canonical
// form so category comparisons downstream run canonical against canonical.
// The second return value keeps the raw preceding categories, index-aligned.
func (s *importService) normalizeDrafts(ctx context.Context, drafts []steps.Draft) ([]steps.Draft, []string, error) {
	normalizer, err := s.newNormalizer()
	if err != nil {
		return nil, nil, err
	}
	raws := make([]string, 0, len(drafts))
	for _, d := range drafts {
		raws = append(raws, d.PrecedingCategory())
	}
	mapped, err := normalizer.MapCategories(ctx, raws)
	if err != nil {
		return nil, nil, err
	}
	out := make([]steps.Draft, len(drafts))
	for i, d := range drafts {
		d.Categories[1] = mapped[d.PrecedingCategory()]
		out[i] = d
	}
	return out, raws, nil
}

func (s *importService) Compare(ctx context.Context, rows []steps.Row) ([]steps.CompareResult, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("compare: no rows: %w", apperrors.ErrInvalidArgument)
	}
	drafts := steps.ExtractRequirements(rows, s.extractorCfg)
	drafts, _, err := s.normalizeDrafts(ctx, drafts)
	if err != nil {
		return nil, err
	}
	history, err := s.requirements.GetAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return steps.CompareAgainstHistory(drafts, history), nil
}

func (s *importService) Commit(ctx context.Context, fileName, organization string, rows []steps.Row, edits map[string]UserEdit) (*domain.ImportRun, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("commit: no rows: %w", apperrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(organization) == "" {
		return nil, fmt.Errorf("commit: organization required: %w", apperrors.ErrInvalidArgument)
	}
	drafts := steps.ExtractRequirements(rows, s.extractorCfg)
	drafts, rawCategories, err := s.normalizeDrafts(ctx, drafts)
	if err != nil {
		return nil, err
	}

	run := &domain.ImportRun{
		ID:             uuid.New(),
		FileName:       fileName,
		Organization:   organization,
		Status:         domain.ImportStatusPending,
		ExtractedCount: len(drafts),
	}
	if _, err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	s.notify(run.ID.String(), steps.ProgressStart, fmt.Sprintf("committing %d drafts from %s", len(drafts), fileName))

	newCount := 0
	mergedCount := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i, draft := range drafts {
			key := steps.GenerateRequirementKey(draft.SheetName, draft.SheetOrder, draft.SheetRowIndex, draft.Text)
			edit := edits[key]

			existing, err := s.requirements.FindByNormalizedText(ctx, tx, draft.Text)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				for _, r := range existing {
					if err := s.mergeExisting(ctx, tx, r, organization, edit); err != nil {
						return err
					}
				}
				mergedCount++
				continue
			}
			if err := s.createRequirement(ctx, tx, draft, rawCategories[i], organization, edit); err != nil {
				return err
			}
			newCount++
		}
		return nil
	})
	if err != nil {
		_ = s.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
			"status": domain.ImportStatusFailed,
			"error":  err.Error(),
		})
		s.notify(run.ID.String(), steps.ProgressError, "import failed: "+err.Error())
		return nil, err
	}

	if err := s.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":       domain.ImportStatusCommitted,
		"new_count":    newCount,
		"merged_count": mergedCount,
	}); err != nil {
		return nil, err
	}
	run.Status = domain.ImportStatusCommitted
	run.NewCount = newCount
	run.MergedCount = mergedCount

	s.notify(run.ID.String(), steps.ProgressSuccess,
		fmt.Sprintf("import committed: %d new, %d merged", newCount, mergedCount))
	s.log.Info("import committed",
		"file_name", fileName, "organization", organization,
		"extracted", len(drafts), "new", newCount, "merged", mergedCount)
	return run, nil
}

func (s *importService) GetRun(ctx context.Context, id uuid.UUID) (*domain.ImportRun, error) {
	return s.runs.GetByID(ctx, nil, id)
}

func (s *importService) notify(channel string, t steps.ProgressEventType, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.ImportEvent(channel, steps.ProgressEvent{
		Type:      t,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

func (s *importService) mergeExisting(ctx context.Context, tx *gorm.DB, r *domain.Requirement, organization string, edit UserEdit) error {
	orgs := unionOrganizations(r.Organizations, organization)
	updates := map[string]interface{}{
		"occurrences":    r.Occurrences + 1,
		"organizations":  orgs,
		"last_seen_date": time.Now().UTC(),
		"is_new":         false,
	}
	if strings.TrimSpace(edit.Status) != "" {
		updates["user_status"] = edit.Status
	}
	if strings.TrimSpace(edit.Comment) != "" {
		updates["user_comment"] = edit.Comment
	}
	return s.requirements.UpdateFields(ctx, tx, r.ID, updates)
}

func (s *importService) createRequirement(ctx context.Context, tx *gorm.DB, draft steps.Draft, rawCategory, organization string, edit UserEdit) error {
	now := time.Now().UTC()
	categories, err := json.Marshal([2]string{draft.SheetCategory(), draft.PrecedingCategory()})
	if err != nil {
		return err
	}
	orgs, err := json.Marshal([]string{organization})
	if err != nil {
		return err
	}
	row := &domain.Requirement{
		ID:            uuid.New(),
		Text:          draft.Text,
		Type:          draft.Type,
		RawCategory:   rawCategory,
		Category:      draft.PrecedingCategory(),
		Categories:    datatypes.JSON(categories),
		Organizations: datatypes.JSON(orgs),
		Occurrences:   1,
		UserStatus:    edit.Status,
		UserComment:   edit.Comment,
		FirstSeenDate: now,
		LastSeenDate:  now,
		IsNew:         true,
	}
	_, err = s.requirements.Create(ctx, tx, []*domain.Requirement{row})
	return err
}

func unionOrganizations(raw datatypes.JSON, organization string) datatypes.JSON {
	var orgs []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &orgs)
	}
	for _, o := range orgs {
		if o == organization {
			out, _ := json.Marshal(orgs)
			return datatypes.JSON(out)
		}
	}
	orgs = append(orgs, organization)
	sort.Strings(orgs)
	out, _ := json.Marshal(orgs)
	return datatypes.JSON(out)
}
