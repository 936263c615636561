package service

import (
	"context"

	"emperror.dev/errors"
	"github.com/FlorianRuen/github-portfolio-proxy/model"
	"github.com/remeh/sizedwaitgroup"
	log "github.com/sirupsen/logrus"
)

// languagesResult is the outcome of the languages call for one repository
type languagesResult struct {
	repository string
	languages  model.LanguageMap
	err        error
}

// AggregateLanguages sum the languages byte counts of every repository of the owner
// the aggregation fails as soon as the listing fails, or when any repository fails
// unless it is a missing repository and SkipMissingRepositories is enabled
func (s githubService) AggregateLanguages(ctx context.Context) (model.LanguageAggregate, error) {
	repos, err := s.listRepositoryNames(ctx)
	if err != nil {
		return model.LanguageAggregate{}, err
	}

	log.WithFields(log.Fields{
		"numberOfRepositories": len(repos),
	}).Debug("will load languages from all repositories")

	results := s.getRepositoriesLanguages(ctx, repos)

	return s.mergeRepositoriesLanguages(results)
}

// getRepositoriesLanguages will fetch the languages used for each repository in parameters
// this function use a sized wait group to parallelize the requests, results are stored by repository position
func (s githubService) getRepositoriesLanguages(ctx context.Context, repos []string) []languagesResult {
	swg := sizedwaitgroup.New(max(s.config.Tasks.MaxParallelTasksAllowed, 1))
	results := make([]languagesResult, len(repos))

	for i, repo := range repos {
		swg.Add()
		go s.fetchLanguagesForSingleRepository(ctx, repo, &swg, &results[i])
	}

	// wait for all tasks to be finished, failed or not
	log.Debug("waiting for all threads for loading repositories languages to be finished")
	swg.Wait()
	log.Debug("all threads for loading repositories languages finished")

	return results
}

// fetchLanguagesForSingleRepository fill the result slot owned by this repository
// each goroutine writes to its own slot, no locking is needed
func (s githubService) fetchLanguagesForSingleRepository(ctx context.Context, repo string, swg *sizedwaitgroup.SizedWaitGroup, result *languagesResult) {
	defer swg.Done()

	languages, err := s.FetchLanguages(ctx, repo)

	*result = languagesResult{
		repository: repo,
		languages:  languages,
		err:        err,
	}
}

// mergeRepositoriesLanguages merge results in repository order once every fetch has settled
// the first failure in repository order is returned
func (s githubService) mergeRepositoriesLanguages(results []languagesResult) (model.LanguageAggregate, error) {
	totals := model.NewLanguageTotals()
	skipped := make([]string, 0)

	var skippedErrs []error

	for _, result := range results {
		if result.err != nil {
			if upstreamErr, ok := model.AsUpstreamError(result.err); ok && upstreamErr.IsNotFound() && s.config.Languages.SkipMissingRepositories {
				skipped = append(skipped, result.repository)
				skippedErrs = append(skippedErrs, result.err)
				continue
			}

			log.WithError(result.err).WithField("repository", result.repository).Error("unable to get repositories languages")
			return model.LanguageAggregate{}, result.err
		}

		totals.Add(result.languages)
	}

	if len(skipped) > 0 {
		log.WithError(errors.Combine(skippedErrs...)).WithField("skipped", skipped).Warning("repositories without languages skipped from aggregation")
	}

	log.WithFields(log.Fields{
		"numberOfRepositories": len(results) - len(skipped),
		"numberOfLanguages":    totals.Len(),
	}).Debug("languages from all repositories merged")

	return model.LanguageAggregate{
		Records: totals.Records(),
		Skipped: skipped,
	}, nil
}
