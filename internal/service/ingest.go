package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/cache"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/classify"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/normalize"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/search"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

const reportTTL = 24 * time.Hour

// ProcessBatch runs the full pipeline over one batch: classify every file,
// build the per-key plan, process each group principal-first, and convert
// every outcome into a report entry. A single bad file never blocks the
// rest.
func (s *service) ProcessBatch(ctx context.Context, files []FileInput) *Report {
	batchID := uuid.New().String()
	log := s.log.WithFields(logrus.Fields{"batch_id": batchID, "files": len(files)})
	log.Info("Processing batch")

	classified := make([]*classify.File, len(files))
	for i, in := range files {
		classified[i] = s.classifier.Classify(in.Filename, i, in.Data)
	}

	plan := s.grouper.BuildPlan(classified)

	results := make(map[int]FileResult, len(files))
	for _, sk := range plan.Skipped {
		results[sk.File.Index] = FileResult{
			Filename:  sk.File.Filename,
			AccessKey: sk.File.AccessKey,
			Outcome:   OutcomeSkipped,
			Message:   sk.Reason,
		}
	}

	for _, group := range plan.Groups {
		if group.Principal != nil {
			results[group.Principal.Index] = s.processPrincipal(ctx, group.Principal)
		}
		for _, unit := range group.Events {
			evRes := s.processEvent(ctx, unit)
			results[unit.Envelope.Index] = evRes
			if unit.Response != nil {
				msg := fmt.Sprintf("merged into paired event %s", unit.Envelope.Filename)
				if evRes.Outcome == OutcomeFailed {
					msg = fmt.Sprintf("confirmation of failed event %s", unit.Envelope.Filename)
				}
				results[unit.Response.Index] = FileResult{
					Filename:  unit.Response.Filename,
					AccessKey: unit.Response.AccessKey,
					Outcome:   OutcomeSkipped,
					Message:   msg,
				}
			}
		}
	}

	report := &Report{BatchID: batchID}
	for i := range files {
		res, ok := results[i]
		if !ok {
			res = FileResult{
				Filename:  files[i].Filename,
				AccessKey: classified[i].AccessKey,
				Outcome:   OutcomeSkipped,
				Message:   "file was not planned for processing",
			}
		}
		report.Files = append(report.Files, res)
		switch res.Outcome {
		case OutcomeSuccess, OutcomeProvisional:
			report.Succeeded++
		case OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	s.cacheReport(ctx, report)
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
	}).Info("Batch processed")
	return report
}

// processPrincipal registers the document root (raw XML always stored,
// even when normalization later fails) and runs the family normalizer.
func (s *service) processPrincipal(ctx context.Context, f *classify.File) FileResult {
	res := FileResult{Filename: f.Filename, AccessKey: f.AccessKey}

	doc, err := s.repo.FindDocumentByKey(ctx, f.AccessKey)
	switch {
	case err == repository.ErrNotFound:
		doc = &models.Document{
			Family:        f.Family,
			AccessKey:     f.AccessKey,
			SchemaVersion: f.SchemaVersion,
			RawXML:        f.Data,
			UploadedAt:    time.Now().UTC(),
		}
		if err := s.repo.CreateDocument(ctx, doc); err != nil {
			res.Outcome = OutcomeFailed
			res.Message = fmt.Sprintf("failed to register document: %v", err)
			return res
		}
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Message = fmt.Sprintf("failed to look up document: %v", err)
		return res
	default:
		// Same key updates in place, never a duplicate root
		doc.RawXML = f.Data
		doc.SchemaVersion = f.SchemaVersion
		doc.UploadedAt = time.Now().UTC()
		if err := s.repo.SaveDocument(ctx, doc); err != nil {
			res.Outcome = OutcomeFailed
			res.Message = fmt.Sprintf("failed to update document: %v", err)
			return res
		}
	}

	warnings, err := s.normalizer.NormalizeDocument(ctx, doc, f.Root)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Message = err.Error()
		return res
	}

	res.Outcome = OutcomeSuccess
	res.Message = strings.Join(warnings, "; ")
	s.fanOut(ctx, doc)
	return res
}

// processEvent applies one event unit, pairing the envelope with its
// confirmation when one was found in the batch
func (s *service) processEvent(ctx context.Context, unit *classify.EventUnit) FileResult {
	res := FileResult{Filename: unit.Envelope.Filename, AccessKey: unit.Envelope.AccessKey}

	in := normalize.EventInput{Envelope: unit.Envelope.Root}
	if unit.Response != nil {
		in.Response = unit.Response.Root
	}

	outcome, err := s.normalizer.ApplyEvent(ctx, in)
	if err != nil {
		res.Outcome = OutcomeFailed
		if errors.Is(err, normalize.ErrDocumentNotFound) {
			res.Message = "referenced document not found"
		} else {
			res.Message = err.Error()
		}
		return res
	}

	if outcome.Provisional {
		res.Outcome = OutcomeProvisional
		res.Message = "event recorded without confirmation"
	} else {
		res.Outcome = OutcomeSuccess
	}
	s.fanOut(ctx, outcome.Document)
	return res
}

// fanOut indexes the document summary and publishes the processed
// notification. Both are fire-and-forget: failures only warn.
func (s *service) fanOut(ctx context.Context, doc *models.Document) {
	if s.search != nil {
		summary := &search.DocumentSummary{
			AccessKey:     doc.AccessKey,
			Family:        doc.Family.String(),
			SchemaVersion: doc.SchemaVersion,
			Processed:     doc.Processed,
			Canceled:      doc.Canceled,
			Modality:      string(doc.Modality),
			Closed:        doc.Closed,
			UploadedAt:    doc.UploadedAt,
		}
		if err := s.search.IndexDocument(ctx, summary); err != nil {
			s.log.WithError(err).WithField("access_key", doc.AccessKey).
				Warn("Failed to index document summary")
		}
	}
	if s.publisher != nil {
		msg := map[string]interface{}{
			"type":       "fiscal.document.processed",
			"access_key": doc.AccessKey,
			"family":     doc.Family.String(),
			"processed":  doc.Processed,
		}
		if err := s.publisher.SendMessage(ctx, msg); err != nil {
			s.log.WithError(err).WithField("access_key", doc.AccessKey).
				Warn("Failed to publish processed notification")
		}
	}
}

// cacheReport stores the report for the lookup endpoint
func (s *service) cacheReport(ctx context.Context, report *Report) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.BatchReportKey(report.BatchID), report, reportTTL); err != nil {
		s.log.WithError(err).WithField("batch_id", report.BatchID).
			Warn("Failed to cache batch report")
	}
}

// GetBatchReport fetches a cached batch report
func (s *service) GetBatchReport(ctx context.Context, batchID string) (*Report, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	var report Report
	if err := s.cache.Get(ctx, cache.BatchReportKey(batchID), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ReprocessPending retries documents left unprocessed, from their stored
// raw XML
func (s *service) ReprocessPending(ctx context.Context, limit int) (int, error) {
	docs, err := s.repo.ListUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}

	succeeded := 0
	for _, doc := range docs {
		root, err := xmlutil.Parse(doc.RawXML)
		if err != nil {
			s.log.WithError(err).WithField("access_key", doc.AccessKey).
				Warn("Stored raw XML did not parse, leaving document unprocessed")
			continue
		}
		if _, err := s.normalizer.NormalizeDocument(ctx, doc, root); err != nil {
			s.log.WithError(err).WithField("access_key", doc.AccessKey).
				Warn("Reprocessing failed")
			continue
		}
		succeeded++
		s.fanOut(ctx, doc)
	}

	if len(docs) > 0 {
		s.log.WithFields(logrus.Fields{"pending": len(docs), "succeeded": succeeded}).
			Info("Reprocessed pending documents")
	}
	return succeeded, nil
}
