package normalize

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
)

func TestApplyEventCancelFlipsDocument(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	makeDoc(t, repo, models.FamilyCTE, cteKey)

	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, procEvent("cte", cteKey, models.EventCodeCancel, cancelDetail)),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Provisional)
	assert.True(t, outcome.Document.Canceled)

	event := outcome.Event
	assert.Equal(t, models.EventCodeCancel, event.EventType)
	assert.Equal(t, 1, event.Sequence)
	assert.Equal(t, "ERRO DE PREENCHIMENTO NO DOCUMENTO", event.Justification)
	assert.Equal(t, "135200000000001", event.OriginalProtocol)
	assert.Equal(t, models.EventStatusRegistered, event.StatusCode)
	assert.Equal(t, "135200000000099", event.ResponseProtocol)
	assert.True(t, event.Confirmed)
	require.NotNil(t, event.RegisteredAt)

	reloaded, err := repo.FindDocumentByKey(ctx, cteKey)
	require.NoError(t, err)
	assert.True(t, reloaded.Canceled)
}

func TestApplyEventEnvelopeAloneIsProvisional(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	makeDoc(t, repo, models.FamilyCTE, cteKey)

	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, eventEnvelope("cte", cteKey, models.EventCodeCancel, cancelDetail)),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Provisional)
	assert.False(t, outcome.Event.Confirmed)
	// Unconfirmed cancellation must not flip the root flag
	assert.False(t, outcome.Document.Canceled)
}

func TestApplyEventLateConfirmationMerges(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	_, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, eventEnvelope("cte", cteKey, models.EventCodeCancel, cancelDetail)),
	})
	require.NoError(t, err)

	// The confirmation arrives in a later batch, as a bare response
	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, eventResponse("cte", cteKey, models.EventCodeCancel, "135")),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Provisional)
	assert.True(t, outcome.Document.Canceled)

	// Merged into the one singleton row: envelope fields survive
	var count int64
	require.NoError(t, db.Model(&models.DocumentEvent{}).Where("document_id = ?", doc.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, "ERRO DE PREENCHIMENTO NO DOCUMENTO", outcome.Event.Justification)
	assert.Equal(t, models.EventStatusRegistered, outcome.Event.StatusCode)
}

func TestApplyEventPairedEnvelopeAndResponse(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	makeDoc(t, repo, models.FamilyMDFE, mdfeKey)

	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, eventEnvelope("mdfe", mdfeKey, models.EventCodeClosure, closureDetail)),
		Response: parseXML(t, eventResponse("mdfe", mdfeKey, models.EventCodeClosure, "135")),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Provisional)
	assert.True(t, outcome.Document.Closed)
	require.NotNil(t, outcome.Document.ClosedAt)
	// dtEnc from the event detail wins over the registration timestamp
	assert.Equal(t, 17, outcome.Document.ClosedAt.Day())
}

func TestApplyEventClosureCancelReopens(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	makeDoc(t, repo, models.FamilyMDFE, mdfeKey)

	_, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, procEvent("mdfe", mdfeKey, models.EventCodeClosure, closureDetail)),
	})
	require.NoError(t, err)

	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, procEvent("mdfe", mdfeKey, models.EventCodeClosureCancel, "")),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Document.Closed)
	assert.Nil(t, outcome.Document.ClosedAt)
}

func TestApplyEventRejectedStatusDoesNotFlip(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	makeDoc(t, repo, models.FamilyCTE, cteKey)

	outcome, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, eventEnvelope("cte", cteKey, models.EventCodeCancel, cancelDetail)),
		Response: parseXML(t, eventResponse("cte", cteKey, models.EventCodeCancel, "573")),
	})
	require.NoError(t, err)
	// Confirmed with a rejection status: not provisional, not canceled
	assert.False(t, outcome.Provisional)
	assert.True(t, outcome.Event.Confirmed)
	assert.False(t, outcome.Event.Registered())
	assert.False(t, outcome.Document.Canceled)
}

func TestApplyEventUnknownDocument(t *testing.T) {
	n, _, _ := testNormalizer(t)
	ctx := context.Background()

	_, err := n.ApplyEvent(ctx, EventInput{
		Envelope: parseXML(t, procEvent("cte", cteKey, models.EventCodeCancel, cancelDetail)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
}

func TestApplyEventWithoutKey(t *testing.T) {
	n, _, _ := testNormalizer(t)
	ctx := context.Background()

	xml := `<eventoCTe versao="3.00"><infEvento><tpEvento>110111</tpEvento></infEvento></eventoCTe>`
	_, err := n.ApplyEvent(ctx, EventInput{Envelope: parseXML(t, xml)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid access key")
}
