package normalize

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

// Normalizer deep-parses one document or event into its section graph.
// Each document is written in one atomic transaction; a failure rolls back
// every section write and leaves the document flagged unprocessed with its
// raw XML intact.
type Normalizer struct {
	repo repository.Repository
	log  *logrus.Logger
}

// New creates a new normalizer
func New(repo repository.Repository, log *logrus.Logger) *Normalizer {
	return &Normalizer{repo: repo, log: log}
}

// NormalizeDocument dispatches to the family-specific normalizer. It
// returns the warning entries accumulated during the parse; on error no
// partial section data is visible and doc.Processed is false.
func (n *Normalizer) NormalizeDocument(ctx context.Context, doc *models.Document, root xmlutil.Map) ([]string, error) {
	switch doc.Family {
	case models.FamilyCTE:
		return n.NormalizeCTE(ctx, doc, root)
	case models.FamilyMDFE:
		return n.NormalizeMDFE(ctx, doc, root)
	default:
		return nil, fmt.Errorf("unknown document family %q", doc.Family)
	}
}

// markUnprocessed persists the unprocessed flag after a rolled-back parse.
// The document row and its raw XML survive regardless of the failure.
func (n *Normalizer) markUnprocessed(ctx context.Context, doc *models.Document) {
	doc.Processed = false
	if err := n.repo.SaveDocument(ctx, doc); err != nil {
		n.log.WithError(err).WithField("access_key", doc.AccessKey).
			Error("Failed to flag document as unprocessed")
	}
}

// warnings accumulates structured default-substitution entries for one
// document parse. Substitutions are warnings, never errors: the system
// favors keeping the document trackable over strict rejection.
type warnings struct {
	log       *logrus.Logger
	accessKey string
	entries   []string
}

func newWarnings(log *logrus.Logger, accessKey string) *warnings {
	return &warnings{log: log, accessKey: accessKey}
}

// add records one warning entry
func (w *warnings) add(section, text string) {
	entry := fmt.Sprintf("%s: %s", section, text)
	w.entries = append(w.entries, entry)
	w.log.WithFields(logrus.Fields{
		"access_key": w.accessKey,
		"section":    section,
	}).Warn(text)
}

// defaulted records one field-level default substitution
func (w *warnings) defaulted(section, field string, def interface{}) {
	w.entries = append(w.entries, fmt.Sprintf("%s.%s defaulted to %v", section, field, def))
	w.log.WithFields(logrus.Fields{
		"access_key": w.accessKey,
		"section":    section,
		"field":      field,
		"default":    def,
	}).Warn("Missing required field, default substituted")
}

// decimal reads a structurally required decimal field, substituting the
// declared default when missing or invalid
func (w *warnings) decimal(m xmlutil.Map, section, field string, path ...string) float64 {
	def := defaultDecimal(section, field)
	v, ok := xmlutil.ParseDecimal(xmlutil.Text(m, path...), def)
	if !ok {
		w.defaulted(section, field, def)
	}
	return v
}

// integer reads a structurally required integer field
func (w *warnings) integer(m xmlutil.Map, section, field string, path ...string) int {
	def := defaultInt(section, field)
	v, ok := xmlutil.ParseInt(xmlutil.Text(m, path...), def)
	if !ok {
		w.defaulted(section, field, def)
	}
	return v
}

// str reads a structurally required string field
func (w *warnings) str(m xmlutil.Map, section, field string, path ...string) string {
	s := xmlutil.Text(m, path...)
	if s == "" {
		def := defaultString(section, field)
		w.defaulted(section, field, def)
		return def
	}
	return s
}
