package normalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

// ErrDocumentNotFound is returned when an event references an access key
// this store has never seen
var ErrDocumentNotFound = errors.New("referenced document not found")

// EventInput carries the parsed maps of one event unit: the outbound
// envelope (or self-sufficient processed-event file) and, optionally, a
// separate confirmation file.
type EventInput struct {
	Envelope xmlutil.Map
	Response xmlutil.Map
}

// EventOutcome reports what applying an event did
type EventOutcome struct {
	Document *models.Document
	Event    *models.DocumentEvent
	// Provisional is true when no confirmation was available: the
	// event is recorded unconfirmed, distinct from a success
	Provisional bool
}

// ApplyEvent resolves the referenced document and merges the outbound
// envelope with its confirmation into the document's singleton event
// record. A successful cancellation or closure also flips the derived
// status flags on the root.
func (n *Normalizer) ApplyEvent(ctx context.Context, in EventInput) (*EventOutcome, error) {
	envInf, retInf := eventBlocks(in.Envelope)
	if retInf == nil {
		_, retInf = eventBlocks(in.Response)
	}
	if envInf == nil && retInf == nil {
		return nil, errors.New("event carries no infEvento block")
	}

	key := eventKey(envInf)
	if key == "" {
		key = eventKey(retInf)
	}
	if !xmlutil.IsAccessKey(key) {
		return nil, fmt.Errorf("event carries no valid access key")
	}

	doc, err := n.repo.FindDocumentByKey(ctx, key)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.Wrap(ErrDocumentNotFound, key)
		}
		return nil, err
	}

	event, err := n.repo.FindEventByDocument(ctx, doc.ID)
	if err != nil {
		if err != repository.ErrNotFound {
			return nil, err
		}
		event = &models.DocumentEvent{DocumentID: doc.ID}
	}

	mergeEnvelope(event, envInf)
	mergeResponse(event, retInf)

	outcome := &EventOutcome{Document: doc, Event: event, Provisional: !event.Confirmed}

	err = n.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.SaveEvent(ctx, event); err != nil {
			return err
		}
		if !event.Registered() {
			return nil
		}
		switch event.EventType {
		case models.EventCodeCancel:
			doc.Canceled = true
		case models.EventCodeClosure:
			doc.Closed = true
			closedAt := event.RegisteredAt
			if dt := xmlutil.ParseTime(xmlutil.Text(envInf, "detEvento", "evEncMDFe", "dtEnc")); dt != nil {
				closedAt = dt
			}
			doc.ClosedAt = closedAt
		case models.EventCodeClosureCancel:
			doc.Closed = false
			doc.ClosedAt = nil
		default:
			return nil
		}
		return tx.SaveDocument(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// eventBlocks locates the envelope and response infEvento maps inside one
// parsed file, whichever of the three event shapes it has
func eventBlocks(m xmlutil.Map) (envInf, retInf xmlutil.Map) {
	if m == nil {
		return nil, nil
	}
	name, content := xmlutil.Root(m)
	switch name {
	case "procEventoCTe", "procEventoMDFe":
		env := xmlutil.ChildMap(content, "eventoCTe")
		if env == nil {
			env = xmlutil.ChildMap(content, "eventoMDFe")
		}
		ret := xmlutil.ChildMap(content, "retEventoCTe")
		if ret == nil {
			ret = xmlutil.ChildMap(content, "retEventoMDFe")
		}
		return xmlutil.ChildMap(env, "infEvento"), xmlutil.ChildMap(ret, "infEvento")
	case "eventoCTe", "eventoMDFe":
		return xmlutil.ChildMap(content, "infEvento"), nil
	case "retEventoCTe", "retEventoMDFe":
		return nil, xmlutil.ChildMap(content, "infEvento")
	}
	return nil, nil
}

// eventKey reads whichever of the two mutually exclusive key fields is
// present
func eventKey(inf xmlutil.Map) string {
	if inf == nil {
		return ""
	}
	if key := xmlutil.Digits(xmlutil.Text(inf, "chCTe")); key != "" {
		return key
	}
	return xmlutil.Digits(xmlutil.Text(inf, "chMDFe"))
}

// mergeEnvelope merges the outbound-envelope fields into the record
func mergeEnvelope(event *models.DocumentEvent, inf xmlutil.Map) {
	if inf == nil {
		return
	}
	event.EventType = xmlutil.Text(inf, "tpEvento")
	event.Sequence = toInt(xmlutil.Text(inf, "nSeqEvento"))
	event.OrganCode = xmlutil.Text(inf, "cOrgao")
	event.EventAt = xmlutil.ParseTime(xmlutil.Text(inf, "dhEvento"))

	if detail := eventDetail(inf); detail != nil {
		event.Justification = xmlutil.Text(detail, "xJust")
		event.OriginalProtocol = xmlutil.Text(detail, "nProt")
	}
}

// mergeResponse merges the confirmation fields into the record. A record
// once confirmed stays confirmed even when only the envelope is
// reprocessed later.
func mergeResponse(event *models.DocumentEvent, inf xmlutil.Map) {
	if inf == nil {
		return
	}
	event.StatusCode = toInt(xmlutil.Text(inf, "cStat"))
	event.StatusReason = xmlutil.Text(inf, "xMotivo")
	event.ResponseProtocol = xmlutil.Text(inf, "nProt")
	event.RegisteredAt = xmlutil.ParseTime(xmlutil.Text(inf, "dhRegEvento"))
	event.Confirmed = true
	if event.EventType == "" {
		event.EventType = xmlutil.Text(inf, "tpEvento")
	}
}

// eventDetail finds the single ev* child of detEvento without caring
// about its concrete name
func eventDetail(inf xmlutil.Map) xmlutil.Map {
	det := xmlutil.ChildMap(inf, "detEvento")
	if det == nil {
		return nil
	}
	for k, v := range det {
		if strings.HasPrefix(k, "-") || k == "#text" {
			continue
		}
		if child, ok := v.(map[string]interface{}); ok {
			return child
		}
	}
	return det
}
