package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/cache"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/classify"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/messaging"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/normalize"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/search"
)

// FileInput is one uploaded XML blob with its filename hint
type FileInput struct {
	Filename string
	Data     []byte
}

// Outcome tags a per-file result
type Outcome string

const (
	// OutcomeSuccess means the file was fully processed
	OutcomeSuccess Outcome = "success"
	// OutcomeProvisional means an event was recorded without its
	// confirmation; counted as succeeded but tagged distinctly
	OutcomeProvisional Outcome = "provisional"
	// OutcomeFailed means processing the file errored
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the file was excluded, not errored
	OutcomeSkipped Outcome = "skipped"
)

// FileResult is the per-file entry of a batch report
type FileResult struct {
	Filename  string  `json:"filename"`
	AccessKey string  `json:"access_key,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
}

// Report is the multi-status result of one batch call, the only coupling
// surface exposed to the upload boundary. File entries preserve
// submission order.
type Report struct {
	BatchID   string       `json:"batch_id"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Files     []FileResult `json:"files"`
}

// Service is the ingestion pipeline boundary
type Service interface {
	// ProcessBatch classifies, groups and normalizes an arbitrary set
	// of XML uploads. It never returns an error: every per-file
	// failure becomes a report entry.
	ProcessBatch(ctx context.Context, files []FileInput) *Report

	// GetBatchReport fetches a recent batch report by ID
	GetBatchReport(ctx context.Context, batchID string) (*Report, error)

	// ReprocessPending retries normalization of documents left
	// unprocessed, from their stored raw XML. Returns how many
	// succeeded.
	ReprocessPending(ctx context.Context, limit int) (int, error)
}

// service is an implementation of the Service interface
type service struct {
	repo       repository.Repository
	classifier *classify.Classifier
	grouper    *classify.Grouper
	normalizer *normalize.Normalizer
	cache      cache.Client
	search     search.Client
	publisher  messaging.Publisher
	log        *logrus.Logger
}

// NewService creates a new ingestion service. The cache, search and
// publisher collaborators are optional; nil disables the corresponding
// fan-out.
func NewService(
	repo repository.Repository,
	cacheClient cache.Client,
	searchClient search.Client,
	publisher messaging.Publisher,
	log *logrus.Logger,
) Service {
	return &service{
		repo:       repo,
		classifier: classify.NewClassifier(log),
		grouper:    classify.NewGrouper(log),
		normalizer: normalize.New(repo, log),
		cache:      cacheClient,
		search:     searchClient,
		publisher:  publisher,
		log:        log,
	}
}
