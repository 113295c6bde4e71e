package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/llmify/llmstxt-service/common/db"
	"github.com/llmify/llmstxt-service/common/generator"
	"github.com/llmify/llmstxt-service/common/llm"
	"github.com/llmify/llmstxt-service/common/logger"
	"github.com/llmify/llmstxt-service/common/queue"
	"github.com/llmify/llmstxt-service/common/urlsource"

	"github.com/rs/zerolog/log"
)

// GenerationJobs turns queue deliveries into generation runs. One instance
// serves every provider queue; the provider comes from the job message.
type GenerationJobs struct {
	db         *db.DB
	processor  *generator.Processor
	resilient  *llm.Resilient
	providers  map[string]llm.Provider
	events     *queue.Events
	logService *logger.LogService
	cfg        config.PipelineConfig
}

func NewGenerationJobs(
	processor *generator.Processor,
	resilient *llm.Resilient,
	providers map[string]llm.Provider,
	events *queue.Events,
	db *db.DB,
	cfg config.PipelineConfig,
) *GenerationJobs {
	return &GenerationJobs{
		db:         db,
		processor:  processor,
		resilient:  resilient,
		providers:  providers,
		events:     events,
		logService: logger.NewLogService(db),
		cfg:        cfg,
	}
}

// Handler builds the queue handler for one provider queue
func (g *GenerationJobs) Handler(queueName string) queue.Handler {
	return queue.HandlerFunc(func(ctx context.Context, msg queue.JobMessage) error {
		return g.handle(ctx, queueName, msg)
	})
}

func (g *GenerationJobs) handle(ctx context.Context, queueName string, msg queue.JobMessage) error {
	kind, generationID, err := queue.ParseJobID(msg.JobID)
	if err != nil || kind != queue.KindGeneration {
		return fmt.Errorf("%w: unexpected job %q", queue.ErrFatal, msg.JobID)
	}

	provider, ok := g.providers[msg.Provider]
	if !ok {
		return fmt.Errorf("%w: provider %q is not configured", queue.ErrFatal, msg.Provider)
	}

	source := urlsource.NewSitemapSource("https://"+msg.Hostname+"/sitemap.xml", g.cfg.FetchTimeout)

	err = g.processor.Run(ctx, generator.NewSummarizer(g.resilient, provider), generator.Params{
		GenerationID: generationID,
		JobID:        msg.JobID,
		Hostname:     msg.Hostname,
		Provider:     msg.Provider,
		Source:       source,
		OnProgress: func(processed, total int) {
			g.events.EmitProgress(queueName, msg.JobID, processed, total)
			if logErr := g.logService.BatchCompleted(ctx, generationID, processed, total); logErr != nil {
				log.Warn().Err(logErr).Int64("generationID", generationID).Msg("Failed to record pipeline log")
			}
		},
	})
	if err != nil {
		if isFatal(err) {
			if abortErr := g.processor.Abort(ctx, generationID, []string{err.Error()}); abortErr != nil {
				log.Error().Err(abortErr).Int64("generationID", generationID).Msg("Failed to abort generation")
			}
			if logErr := g.logService.GenerationFailed(ctx, generationID, err.Error()); logErr != nil {
				log.Warn().Err(logErr).Int64("generationID", generationID).Msg("Failed to record pipeline log")
			}
			return fmt.Errorf("%w: %v", queue.ErrFatal, err)
		}
		return err
	}

	entryCount := 0
	if gen, getErr := g.db.Queries.GetGeneration(ctx, generationID); getErr == nil && gen.EntryCount.Valid {
		entryCount = int(gen.EntryCount.Int32)
	}
	if logErr := g.logService.GenerationCompleted(ctx, generationID, entryCount); logErr != nil {
		log.Warn().Err(logErr).Int64("generationID", generationID).Msg("Failed to record pipeline log")
	}
	return nil
}

// Exhausted is the worker's callback for jobs whose deliveries ran out on a
// transient failure. The handler never got to write a terminal status, so
// the subject is failed and its content references are given back here.
func (g *GenerationJobs) Exhausted(ctx context.Context, msg queue.JobMessage, jobErr error) {
	kind, generationID, err := queue.ParseJobID(msg.JobID)
	if err != nil || kind != queue.KindGeneration {
		return
	}
	if abortErr := g.processor.Abort(ctx, generationID, []string{jobErr.Error()}); abortErr != nil {
		log.Error().Err(abortErr).Int64("generationID", generationID).Msg("Failed to abort exhausted generation")
	}
	if logErr := g.logService.GenerationFailed(ctx, generationID, jobErr.Error()); logErr != nil {
		log.Warn().Err(logErr).Int64("generationID", generationID).Msg("Failed to record pipeline log")
	}
}

// isFatal separates processor outcomes the queue must not retry from
// transient failures it should. A critical failure rate is transient: the
// upstream may recover, so the run gets its remaining deliveries before the
// subject is failed for good.
func isFatal(err error) bool {
	return errors.Is(err, generator.ErrNoContent) ||
		errors.Is(err, generator.ErrNotRunnable)
}
