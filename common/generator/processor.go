package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/llmify/llmstxt-service/common/llm"
	"github.com/llmify/llmstxt-service/common/status"
	"github.com/llmify/llmstxt-service/common/summarycache"
	"github.com/llmify/llmstxt-service/common/urlsource"
	"github.com/llmify/llmstxt-service/repository"

	"github.com/rs/zerolog/log"
)

// descriptionSamples caps how many valid pages feed the site description
const descriptionSamples = 3

// Processor runs one generation end to end: stream URLs, process them in
// sequential batches, aggregate failures, format and persist the document.
type Processor struct {
	store            Store
	cache            SummaryCache
	contentStore     ContentStore
	extractor        Extractor
	artifacts        ArtifactSink
	batchSize        int
	failureThreshold float64
}

// NewProcessor wires a processor
func NewProcessor(store Store, cache SummaryCache, contentStore ContentStore, ext Extractor, batchSize int, failureThreshold float64) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	if failureThreshold <= 0 || failureThreshold > 1 {
		failureThreshold = 0.8
	}
	return &Processor{
		store:            store,
		cache:            cache,
		contentStore:     contentStore,
		extractor:        ext,
		batchSize:        batchSize,
		failureThreshold: failureThreshold,
	}
}

// WithArtifacts also uploads finished documents to object storage
func (p *Processor) WithArtifacts(sink ArtifactSink) *Processor {
	p.artifacts = sink
	return p
}

// Run executes one generation. The returned error is nil on success and
// ErrNoContent / ErrNotRunnable on outcomes the queue must not retry.
// ErrCriticalFailure and anything else are retriable: the queue redelivers,
// and Run re-admits its own FAILED or PROCESSING subject.
func (p *Processor) Run(ctx context.Context, summarizer Summarizer, params Params) error {
	gen, err := p.store.GetGeneration(ctx, params.GenerationID)
	if err != nil {
		return fmt.Errorf("loading generation %d: %w", params.GenerationID, err)
	}

	current := status.GenerationStatus(gen.Status)
	switch current {
	case status.GenerationProcessing:
		// A redelivery of a job whose previous attempt was interrupted
		// (Nak, expired AckWait) finds its own subject PROCESSING and
		// resumes it.
	case status.GenerationFailed:
		// FAILED -> QUEUED re-admits the subject for another attempt.
		if err := p.setStatus(ctx, params.GenerationID, current, status.GenerationQueued); err != nil {
			return err
		}
		if err := p.setStatus(ctx, params.GenerationID, status.GenerationQueued, status.GenerationProcessing); err != nil {
			return err
		}
	default:
		if err := p.setStatus(ctx, params.GenerationID, current, status.GenerationProcessing); err != nil {
			return err
		}
	}

	logger := log.With().Int64("generationID", params.GenerationID).Str("provider", params.Provider).Logger()

	urls, err := drainSource(ctx, params.Source)
	if err != nil {
		// Transient source failures (unreachable sitemap, timeouts) are the
		// broker's to retry; FAILED is only written once deliveries run out.
		logger.Error().Err(err).Msg("URL source failed")
		return fmt.Errorf("reading url source: %w", err)
	}
	if len(urls) == 0 {
		logger.Warn().Msg("URL source yielded no URLs")
		if err := p.fail(ctx, params.GenerationID, []string{ErrNoContent.Error()}); err != nil {
			return err
		}
		return ErrNoContent
	}

	total := len(urls)
	logger.Info().Int("total", total).Int("batchSize", p.batchSize).Msg("Starting generation run")

	cacheKey := summarycache.Key(params.Provider, params.Hostname)
	results := make([]UrlSummary, 0, total)
	processed := 0

	for start := 0; start < total; start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + p.batchSize
		if end > total {
			end = total
		}
		batch := urls[start:end]

		batchResults, err := p.processBatch(ctx, summarizer, params.GenerationID, cacheKey, batch)
		if err != nil {
			// Transport-level failure of the whole batch; let the queue retry
			// the job.
			return fmt.Errorf("processing batch %d-%d: %w", start, end, err)
		}
		results = append(results, batchResults...)

		processed = end
		if err := p.store.UpdateGenerationProgress(ctx, repository.UpdateGenerationProgressParams{
			ID:             params.GenerationID,
			ProcessedUnits: int32(processed),
			TotalUnits:     int32(total),
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist progress")
		}
		if params.OnProgress != nil {
			params.OnProgress(processed, total)
		}
	}

	return p.finish(ctx, summarizer, params, cacheKey, results)
}

// setStatus validates and persists one generation transition. Illegal edges
// come back wrapped in ErrNotRunnable so the queue terminates the delivery.
func (p *Processor) setStatus(ctx context.Context, generationID int64, from, to status.GenerationStatus) error {
	if err := status.ValidateGenerationTransition(from, to); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunnable, err)
	}
	if _, err := p.store.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     generationID,
		Status: string(to),
	}); err != nil {
		return fmt.Errorf("marking generation %d %s: %w", generationID, to, err)
	}
	return nil
}

// guardTerminal re-reads the live status right before a terminal write so a
// cancellation issued while the run was in flight wins over the run's result.
func (p *Processor) guardTerminal(ctx context.Context, generationID int64, to status.GenerationStatus) error {
	gen, err := p.store.GetGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("reloading generation %d: %w", generationID, err)
	}
	if err := status.ValidateGenerationTransition(status.GenerationStatus(gen.Status), to); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunnable, err)
	}
	return nil
}

// processBatch resolves one batch: cache hits first, then concurrent
// extraction of the misses, then a single LLM call for the extracted pages.
func (p *Processor) processBatch(ctx context.Context, summarizer Summarizer, generationID int64, cacheKey string, batch []string) ([]UrlSummary, error) {
	hits, misses, err := p.cache.Load(ctx, cacheKey, batch)
	if err != nil {
		return nil, err
	}

	// Extract the misses concurrently; the batch size bounds the fan-out.
	type extraction struct {
		url  string
		page llm.PageContent
		err  error
	}
	extractions := make([]extraction, len(misses))
	var wg sync.WaitGroup
	for i, url := range misses {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			page, err := p.extractor.Extract(ctx, url)
			if err != nil {
				extractions[i] = extraction{url: url, err: err}
				return
			}
			extractions[i] = extraction{url: url, page: llm.PageContent{
				URL:   page.URL,
				Title: page.Title,
				Text:  page.Text,
			}}
		}(i, url)
	}
	wg.Wait()

	extracted := make([]llm.PageContent, 0, len(misses))
	failed := make(map[string]error)
	for _, ex := range extractions {
		if ex.err != nil {
			failed[ex.url] = ex.err
			continue
		}
		if _, err := p.contentStore.StoreFor(ctx, generationID, ex.page.Text); err != nil {
			log.Warn().Err(err).Str("url", ex.url).Msg("Failed to store content")
		}
		extracted = append(extracted, ex.page)
	}

	// One LLM call for everything the cache did not cover.
	generated := make(map[string]summarycache.Entry)
	if len(extracted) > 0 {
		summaries, err := summarizer.BatchSummaries(ctx, extracted)
		if err != nil {
			return nil, err
		}
		for i, s := range summaries {
			url := s.URL
			if url == "" && i < len(extracted) {
				url = extracted[i].URL
			}
			title := s.Title
			if title == "" && i < len(extracted) {
				title = extracted[i].Title
			}
			generated[url] = summarycache.Entry{Title: title, Summary: s.Summary}
		}
		if err := p.cache.StoreNew(ctx, cacheKey, generated); err != nil {
			log.Warn().Err(err).Msg("Failed to cache new summaries")
		}
	}

	// Assemble results in batch order.
	results := make([]UrlSummary, 0, len(batch))
	for _, url := range batch {
		if entry, ok := hits[url]; ok {
			results = append(results, UrlSummary{URL: url, Title: entry.Title, Summary: entry.Summary})
			continue
		}
		if entry, ok := generated[url]; ok {
			results = append(results, UrlSummary{URL: url, Title: entry.Title, Summary: entry.Summary})
			continue
		}
		err, ok := failed[url]
		if !ok {
			err = fmt.Errorf("no summary generated for %s", url)
		}
		results = append(results, UrlSummary{URL: url, Err: err})
	}
	return results, nil
}

// finish aggregates per-URL outcomes into a terminal state
func (p *Processor) finish(ctx context.Context, summarizer Summarizer, params Params, cacheKey string, results []UrlSummary) error {
	outcome := Aggregate(results, p.failureThreshold)

	if outcome.Failed {
		log.Error().
			Int64("generationID", params.GenerationID).
			Float64("failureRate", outcome.FailureRate).
			Strs("errors", outcome.Errors).
			Msg("Generation failed, failure rate over threshold")
		if err := p.fail(ctx, params.GenerationID, outcome.Errors); err != nil {
			return err
		}
		return fmt.Errorf("%w: %.0f%% of URLs failed", ErrCriticalFailure, outcome.FailureRate*100)
	}

	description := p.resolveDescription(ctx, summarizer, params, cacheKey, outcome.Valid)
	document := Format(params.Hostname, description, outcome.Valid)

	if err := p.guardTerminal(ctx, params.GenerationID, status.GenerationCompleted); err != nil {
		return err
	}
	if err := p.store.SetGenerationOutput(ctx, repository.SetGenerationOutputParams{
		ID:         params.GenerationID,
		Output:     document,
		EntryCount: int32(len(outcome.Valid)),
	}); err != nil {
		return fmt.Errorf("persisting output for %d: %w", params.GenerationID, err)
	}
	if _, err := p.store.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     params.GenerationID,
		Status: string(status.GenerationCompleted),
	}); err != nil {
		return fmt.Errorf("marking generation %d completed: %w", params.GenerationID, err)
	}

	if p.artifacts != nil {
		if _, err := p.artifacts.Save(ctx, params.Hostname, params.Provider, params.GenerationID, document); err != nil {
			log.Warn().Err(err).Int64("generationID", params.GenerationID).Msg("Artifact upload failed")
		}
	}

	log.Info().
		Int64("generationID", params.GenerationID).
		Int("entries", len(outcome.Valid)).
		Msg("Generation completed")
	return nil
}

func (p *Processor) resolveDescription(ctx context.Context, summarizer Summarizer, params Params, cacheKey string, valid []UrlSummary) string {
	if cached, ok := p.cache.Description(ctx, cacheKey).Get(); ok {
		return cached
	}

	samples := make([]llm.PageContent, 0, descriptionSamples)
	for _, s := range valid {
		if len(samples) == descriptionSamples {
			break
		}
		samples = append(samples, llm.PageContent{URL: s.URL, Title: s.Title, Text: s.Summary})
	}

	description, err := summarizer.SiteDescription(ctx, params.Hostname, samples)
	if err != nil {
		log.Warn().Err(err).Str("hostname", params.Hostname).Msg("Site description failed, omitting")
		return ""
	}
	if err := p.cache.StoreDescription(ctx, cacheKey, description); err != nil {
		log.Warn().Err(err).Msg("Failed to cache site description")
	}
	return description
}

func (p *Processor) fail(ctx context.Context, generationID int64, errs []string) error {
	if err := p.guardTerminal(ctx, generationID, status.GenerationFailed); err != nil {
		return err
	}
	if err := p.store.RecordGenerationErrors(ctx, repository.RecordGenerationErrorsParams{
		ID:     generationID,
		Errors: errs,
	}); err != nil {
		return fmt.Errorf("recording errors for %d: %w", generationID, err)
	}
	if _, err := p.store.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     generationID,
		Status: string(status.GenerationFailed),
	}); err != nil {
		return fmt.Errorf("marking generation %d failed: %w", generationID, err)
	}
	return nil
}

// Abort permanently fails a generation whose deliveries are exhausted and
// releases the content references its snapshot holds. Safe to call when the
// subject already reached a terminal state: the status write is skipped and
// only the references are given back.
func (p *Processor) Abort(ctx context.Context, generationID int64, errs []string) error {
	gen, err := p.store.GetGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("loading generation %d: %w", generationID, err)
	}

	current := status.GenerationStatus(gen.Status)
	if status.ValidateGenerationTransition(current, status.GenerationFailed) == nil {
		if err := p.store.RecordGenerationErrors(ctx, repository.RecordGenerationErrorsParams{
			ID:     generationID,
			Errors: errs,
		}); err != nil {
			return fmt.Errorf("recording errors for %d: %w", generationID, err)
		}
		if _, err := p.store.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
			ID:     generationID,
			Status: string(status.GenerationFailed),
		}); err != nil {
			return fmt.Errorf("marking generation %d failed: %w", generationID, err)
		}
	}

	// A completed snapshot keeps its references; a duplicate delivery that
	// trips over COMPLETED must not tear it down.
	if current == status.GenerationCompleted {
		return nil
	}
	return p.contentStore.ReleaseFor(ctx, generationID)
}

// drainSource reads the iterator to completion. The sources involved are
// site sized, so holding the URL list is fine and gives an exact total for
// progress reporting.
func drainSource(ctx context.Context, source urlsource.Iterator) ([]string, error) {
	defer source.Close()

	var urls []string
	for {
		url, done, err := source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return urls, nil
		}
		urls = append(urls, url)
	}
}
