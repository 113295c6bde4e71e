package generator

import (
	"context"
	"errors"

	"github.com/llmify/llmstxt-service/common/extractor"
	"github.com/llmify/llmstxt-service/common/llm"
	"github.com/llmify/llmstxt-service/common/summarycache"
	"github.com/llmify/llmstxt-service/common/urlsource"
	"github.com/llmify/llmstxt-service/repository"

	"github.com/samber/mo"
)

var (
	// ErrNoContent means the URL source yielded nothing usable. Fatal; the
	// job must not be retried.
	ErrNoContent = errors.New("no content to process")
	// ErrCriticalFailure means too many URLs failed for the output to be
	// worth anything. The run is marked FAILED but the queue may re-admit
	// it until deliveries run out.
	ErrCriticalFailure = errors.New("critical failure rate reached")
	// ErrNotRunnable means the generation is not in a runnable state
	// (already cancelled or finished). Fatal.
	ErrNotRunnable = errors.New("generation is not runnable")
)

// UrlSummary is the per-URL outcome of a run
type UrlSummary struct {
	URL     string
	Title   string
	Text    string
	Summary string
	Err     error
}

// Valid reports whether this entry can appear in the output document
func (s UrlSummary) Valid() bool {
	return s.Err == nil && s.Summary != ""
}

// Params describes one generation run. It is immutable for the duration of
// the run; all mutable progress lives in the database.
type Params struct {
	GenerationID int64
	JobID        string
	Hostname     string
	Provider     string
	Source       urlsource.Iterator
	OnProgress   func(processed, total int)
}

// Store is the slice of repository the processor writes through
type Store interface {
	GetGeneration(ctx context.Context, id int64) (repository.Generation, error)
	UpdateGenerationStatus(ctx context.Context, arg repository.UpdateGenerationStatusParams) (string, error)
	UpdateGenerationProgress(ctx context.Context, arg repository.UpdateGenerationProgressParams) error
	SetGenerationOutput(ctx context.Context, arg repository.SetGenerationOutputParams) error
	RecordGenerationErrors(ctx context.Context, arg repository.RecordGenerationErrorsParams) error
}

// Extractor fetches and reduces one page
type Extractor interface {
	Extract(ctx context.Context, url string) (extractor.Page, error)
}

// SummaryCache is the cache surface the processor uses
type SummaryCache interface {
	Load(ctx context.Context, key string, urls []string) (map[string]summarycache.Entry, []string, error)
	StoreNew(ctx context.Context, key string, entries map[string]summarycache.Entry) error
	Description(ctx context.Context, key string) mo.Option[string]
	StoreDescription(ctx context.Context, key, description string) error
}

// ContentStore deduplicates raw page text and tracks which generation holds
// which hashes, so teardown can give the references back.
type ContentStore interface {
	StoreFor(ctx context.Context, generationID int64, content string) (hash string, err error)
	ReleaseFor(ctx context.Context, generationID int64) error
}

// ArtifactSink receives finished documents for object storage
type ArtifactSink interface {
	Save(ctx context.Context, hostname, provider string, generationID int64, document string) (string, error)
}

// Summarizer is the LLM surface: one batch call per page batch, one call
// for the site description.
type Summarizer interface {
	BatchSummaries(ctx context.Context, pages []llm.PageContent) ([]llm.Summary, error)
	SiteDescription(ctx context.Context, hostname string, samples []llm.PageContent) (string, error)
}

// resilientSummarizer binds a provider to the retry wrapper
type resilientSummarizer struct {
	resilient *llm.Resilient
	provider  llm.Provider
}

// NewSummarizer adapts a provider plus retry wrapper to the Summarizer
// interface.
func NewSummarizer(resilient *llm.Resilient, provider llm.Provider) Summarizer {
	return &resilientSummarizer{resilient: resilient, provider: provider}
}

func (s *resilientSummarizer) BatchSummaries(ctx context.Context, pages []llm.PageContent) ([]llm.Summary, error) {
	return s.resilient.BatchSummaries(ctx, s.provider, pages)
}

func (s *resilientSummarizer) SiteDescription(ctx context.Context, hostname string, samples []llm.PageContent) (string, error) {
	return s.resilient.SiteDescription(ctx, s.provider, hostname, samples)
}
