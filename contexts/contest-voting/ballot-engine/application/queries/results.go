package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/application/results"
	"contestvote/contexts/contest-voting/ballot-engine/application/tally"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// ResultsUseCase serves category and contest results. Category results are
// recomputed from stored ballots on every miss; Cache may be nil.
type ResultsUseCase struct {
	Contests    ports.ContestRepository
	Contestants ports.ContestantLister
	Ballots     ports.BallotLister
	Cache       ports.ResultCache
	Clock       ports.Clock
	Metrics     ports.Metrics
	Concurrency int
	Logger      *slog.Logger
}

// ComputeCategoryResult tallies a category from a single read of its ballots,
// bypassing the cache.
func (uc ResultsUseCase) ComputeCategoryResult(ctx context.Context, categoryID string) (entities.CategoryResult, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return entities.CategoryResult{}, domainerrors.ErrCategoryNotFound
	}
	category, err := uc.Contests.GetCategory(ctx, categoryID)
	if err != nil {
		return entities.CategoryResult{}, err
	}
	return uc.computeCategory(ctx, category)
}

// GetCategoryResult reads through the result cache.
func (uc ResultsUseCase) GetCategoryResult(ctx context.Context, categoryID string) (entities.CategoryResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)
	categoryID = strings.TrimSpace(categoryID)

	if uc.Cache != nil {
		cached, found, err := uc.Cache.GetCategoryResult(ctx, categoryID)
		if err != nil {
			logger.Warn("category result cache read failed",
				"event", "ballot_engine_results_cache_read_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "application",
				"category_id", categoryID,
				"error", err.Error(),
			)
		} else if found {
			metrics.ObserveCacheLookup(true)
			return cached, nil
		}
		metrics.ObserveCacheLookup(false)
	}

	result, err := uc.ComputeCategoryResult(ctx, categoryID)
	if err != nil {
		return entities.CategoryResult{}, err
	}
	if uc.Cache != nil {
		if err := uc.Cache.SetCategoryResult(ctx, result); err != nil {
			logger.Warn("category result cache write failed",
				"event", "ballot_engine_results_cache_write_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "application",
				"category_id", categoryID,
				"error", err.Error(),
			)
		}
	}
	return result, nil
}

// GetVisibleCategoryResult applies the contest's visibility policy to a
// single category read.
func (uc ResultsUseCase) GetVisibleCategoryResult(
	ctx context.Context,
	categoryID string,
	view entities.ResultsView,
) (entities.CategoryResult, error) {
	category, err := uc.Contests.GetCategory(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return entities.CategoryResult{}, err
	}
	contest, err := uc.Contests.GetContest(ctx, category.ContestID)
	if err != nil {
		return entities.CategoryResult{}, err
	}
	if err := results.CheckVisibility(contest, uc.resolveView(view)); err != nil {
		return entities.CategoryResult{}, err
	}
	return uc.GetCategoryResult(ctx, category.CategoryID)
}

// GetContestResult tallies every category of the contest concurrently and
// composes the contest document. Categories are not read from a common
// snapshot.
func (uc ResultsUseCase) GetContestResult(
	ctx context.Context,
	contestID string,
	view entities.ResultsView,
) (entities.ContestResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	view = uc.resolveView(view)

	contest, err := uc.Contests.GetContest(ctx, strings.TrimSpace(contestID))
	if err != nil {
		return entities.ContestResult{}, err
	}
	if err := results.CheckVisibility(contest, view); err != nil {
		logger.Info("contest results withheld",
			"event", "ballot_engine_contest_results_withheld",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"contest_id", contest.ContestID,
		)
		return entities.ContestResult{}, err
	}

	categories, err := uc.Contests.ListCategories(ctx, contest.ContestID)
	if err != nil {
		return entities.ContestResult{}, err
	}

	categoryResults := make([]entities.CategoryResult, len(categories))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.resolveConcurrency())
	for i, category := range categories {
		group.Go(func() error {
			result, err := uc.GetCategoryResult(groupCtx, category.CategoryID)
			if err != nil {
				return err
			}
			categoryResults[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logger.Error("contest results computation failed",
			"event", "ballot_engine_contest_results_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"contest_id", contest.ContestID,
			"error", err.Error(),
		)
		return entities.ContestResult{}, err
	}

	return results.Compose(contest, categoryResults, view)
}

// InvalidateCategoryResult drops the cached result of a category.
func (uc ResultsUseCase) InvalidateCategoryResult(ctx context.Context, categoryID string) error {
	if uc.Cache == nil {
		return nil
	}
	return uc.Cache.Invalidate(ctx, strings.TrimSpace(categoryID))
}

// computeCategory reads ballots before contestants. Contestants are append
// only and a write-in commits with its ballot, so every contestant a listed
// ballot references is present in the later contestant read.
func (uc ResultsUseCase) computeCategory(ctx context.Context, category entities.Category) (entities.CategoryResult, error) {
	ballots, err := uc.Ballots.ListBallots(ctx, category.CategoryID)
	if err != nil {
		return entities.CategoryResult{}, err
	}
	contestants, err := uc.Contestants.ListContestants(ctx, category.CategoryID)
	if err != nil {
		return entities.CategoryResult{}, err
	}

	started := time.Now()
	result, err := tally.Compute(category, contestants, ballots)
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("category tally failed",
			"event", "ballot_engine_tally_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"category_id", category.CategoryID,
			"error", err.Error(),
		)
		return entities.CategoryResult{}, err
	}
	application.ResolveMetrics(uc.Metrics).ObserveTally(category.VotingMethod, time.Since(started))
	return result, nil
}

func (uc ResultsUseCase) resolveView(view entities.ResultsView) entities.ResultsView {
	if view.Now.IsZero() {
		view.Now = application.ResolveNow(uc.Clock)
	}
	return view
}

func (uc ResultsUseCase) resolveConcurrency() int {
	if uc.Concurrency <= 0 {
		return defaultConcurrency
	}
	return uc.Concurrency
}
