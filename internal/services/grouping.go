package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
	"github.com/kravdesk/kravdesk-backend/internal/modules/krav/steps"
	"github.com/kravdesk/kravdesk-backend/internal/platform/envutil"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
	"github.com/kravdesk/kravdesk-backend/internal/platform/openai"
)

type GroupingService interface {
	// Run clusters the full persisted corpus and commits the new grouping.
	Run(ctx context.Context) (steps.GroupingResult, error)
}

type groupingService struct {
	db           *gorm.DB
	log          *logger.Logger
	requirements repos.RequirementRepo
	mappings     repos.CategoryMappingRepo
	ai           openai.Client
	notifier     ProgressNotifier
}

func NewGroupingService(db *gorm.DB, log *logger.Logger, requirements repos.RequirementRepo, mappings repos.CategoryMappingRepo, ai openai.Client, notifier ProgressNotifier) (GroupingService, error) {
	if db == nil || log == nil || requirements == nil || mappings == nil {
		return nil, fmt.Errorf("grouping service: missing deps")
	}
	return &groupingService{
		db:           db,
		log:          log.With("service", "GroupingService"),
		requirements: requirements,
		mappings:     mappings,
		ai:           ai,
		notifier:     notifier,
	}, nil
}

func (s *groupingService) Run(ctx context.Context) (steps.GroupingResult, error) {
	corpus, err := s.requirements.GetForGrouping(ctx, nil)
	if err != nil {
		return steps.GroupingResult{}, fmt.Errorf("load corpus: %w", err)
	}

	cache := steps.NewCategoryCache(s.mappings)
	normalizer, err := steps.NewCategoryNormalizer(steps.CategoryNormalizerDeps{
		Mappings: s.mappings,
		AI:       s.ai,
		Log:      s.log,
		Cache:    cache,
	})
	if err != nil {
		return steps.GroupingResult{}, err
	}

	deps := steps.GroupingDeps{
		Log:          s.log,
		Requirements: s.requirements,
		AI:           s.ai,
		Normalizer:   normalizer,
		Parallelism:  envutil.Int("GROUPING_PARALLELISM", 1),
		BatchSize:    envutil.Int("GROUPING_BATCH_SIZE", 0),
	}

	var onProgress steps.ProgressFunc
	if s.notifier != nil {
		onProgress = s.notifier.GroupingEvent
	}
	return steps.GroupRequirements(ctx, deps, nil, corpus, onProgress)
}
