package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
)

func TestNormalizeCTEFull(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	warnings, err := n.NormalizeCTE(ctx, doc, parseXML(t, fullCTE(cteKey, cteKey, "0")))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, doc.Processed)
	assert.Equal(t, models.ModalityCIF, doc.Modality)
	assert.Equal(t, "3.00", doc.SchemaVersion)

	var ident models.Identification
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&ident).Error)
	assert.Equal(t, 125, ident.Number)
	assert.Equal(t, "TRANSPORTE RODOVIARIO", ident.OperationNature)
	assert.Equal(t, "SP", ident.OriginUF)
	assert.Equal(t, "RJ", ident.DestUF)
	assert.Equal(t, "0", ident.PayerRole)
	require.NotNil(t, ident.EmittedAt)

	var parties []models.Party
	require.NoError(t, db.Where("document_id = ?", doc.ID).Order("role").Find(&parties).Error)
	require.Len(t, parties, 3)
	roles := map[models.PartyRole]models.Party{}
	for _, p := range parties {
		roles[p.Role] = p
	}
	assert.Equal(t, "14200166000187", roles[models.RoleIssuer].CNPJ)
	assert.Equal(t, "SAO PAULO", roles[models.RoleIssuer].CityName)
	assert.Equal(t, "01000000", roles[models.RoleIssuer].ZipCode)
	assert.Equal(t, "REMETENTE SA", roles[models.RoleSender].Name)
	assert.Equal(t, "RIO DE JANEIRO", roles[models.RoleRecipient].CityName)

	var freight models.Freight
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&freight).Error)
	assert.Equal(t, 1500.50, freight.TotalValue)

	var comps []models.FreightComponent
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&comps).Error)
	assert.Len(t, comps, 2)

	var tax models.Tax
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&tax).Error)
	assert.Equal(t, "ICMS00", tax.Variant)
	assert.Equal(t, "00", tax.CST)
	assert.Equal(t, 180.06, tax.Value)
	assert.Equal(t, 255.08, tax.TotalTributes)

	var cargo models.Cargo
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&cargo).Error)
	assert.Equal(t, 25000.00, cargo.Value)
	assert.Equal(t, "ELETRONICOS", cargo.Product)

	var quantities []models.CargoQuantity
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&quantities).Error)
	assert.Len(t, quantities, 2)

	var transported []models.TransportedDocument
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&transported).Error)
	require.Len(t, transported, 2)
	assert.Equal(t, "nfe", transported[0].Kind)

	var insurance []models.Insurance
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&insurance).Error)
	require.Len(t, insurance, 1)
	assert.Equal(t, "SEGURADORA EXEMPLO", insurance[0].Insurer)

	var modal models.RoadModal
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&modal).Error)
	assert.Equal(t, "12345678", modal.RNTRC)

	var vehicles []models.Vehicle
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&vehicles).Error)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "ABC1234", vehicles[0].Plate)
	assert.Equal(t, 23000, vehicles[0].CapacityKG)

	var drivers []models.Driver
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&drivers).Error)
	require.Len(t, drivers, 1)
	assert.Equal(t, "12345678901", drivers[0].CPF)

	var viewers []models.AuthorizedViewer
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&viewers).Error)
	require.Len(t, viewers, 1)
	assert.Equal(t, "33333333000133", viewers[0].TaxID)

	var tech models.TechResponsible
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&tech).Error)
	assert.Equal(t, "44444444000144", tech.CNPJ)

	var prot models.Protocol
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&prot).Error)
	assert.Equal(t, "135200000000001", prot.Number)
	assert.Equal(t, 100, prot.StatusCode)

	var supl models.Supplement
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&supl).Error)
	assert.Contains(t, supl.QRCode, cteKey)
}

func TestNormalizeCTEReparseReplacesSections(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	_, err := n.NormalizeCTE(ctx, doc, parseXML(t, fullCTE(cteKey, cteKey, "0")))
	require.NoError(t, err)

	// The second upload shrinks components, quantities and parties
	warnings, err := n.NormalizeCTE(ctx, doc, parseXML(t, minimalCTE(cteKey)))
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	var identCount int64
	require.NoError(t, db.Model(&models.Identification{}).Where("document_id = ?", doc.ID).Count(&identCount).Error)
	assert.EqualValues(t, 1, identCount)

	var comps []models.FreightComponent
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&comps).Error)
	require.Len(t, comps, 1)
	assert.Equal(t, "FRETE FOB", comps[0].Name)

	var quantities []models.CargoQuantity
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&quantities).Error)
	assert.Len(t, quantities, 1)

	var parties []models.Party
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&parties).Error)
	require.Len(t, parties, 1)
	assert.Equal(t, models.RoleIssuer, parties[0].Role)

	// The shrunken upload carries no transported documents at all
	var transported []models.TransportedDocument
	require.NoError(t, db.Where("document_id = ?", doc.ID).Find(&transported).Error)
	assert.Empty(t, transported)

	var tax models.Tax
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&tax).Error)
	assert.Equal(t, "ICMS45", tax.Variant)
}

func TestNormalizeCTEDefaultsSubstituted(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	warnings, err := n.NormalizeCTE(ctx, doc, parseXML(t, minimalCTE(cteKey)))
	require.NoError(t, err)
	assert.True(t, doc.Processed)

	var freight models.Freight
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&freight).Error)
	assert.Equal(t, 0.01, freight.TotalValue)
	assert.Equal(t, 0.01, freight.ReceivableValue)

	var cargo models.Cargo
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&cargo).Error)
	assert.Equal(t, 0.01, cargo.Value)
	assert.Equal(t, "NAO INFORMADO", cargo.Product)

	var ident models.Identification
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&ident).Error)
	assert.Equal(t, 0, ident.Number)
	assert.Equal(t, "NAO INFORMADO", ident.OperationNature)

	assert.Contains(t, warnings, "vPrest.vTPrest defaulted to 0.01")
	assert.Contains(t, warnings, "infCarga.proPred defaulted to NAO INFORMADO")
	assert.Contains(t, warnings, "ide.natOp defaulted to NAO INFORMADO")
	assert.Contains(t, warnings, "ide.nCT defaulted to 0")
}

func TestNormalizeCTEModalityFromComponentName(t *testing.T) {
	n, repo, _ := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	// No toma block at all; "FRETE FOB" component decides
	_, err := n.NormalizeCTE(ctx, doc, parseXML(t, minimalCTE(cteKey)))
	require.NoError(t, err)
	assert.Equal(t, models.ModalityFOB, doc.Modality)
}

func TestNormalizeCTEDisagreeingProtocolDiscarded(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	warnings, err := n.NormalizeCTE(ctx, doc, parseXML(t, fullCTE(cteKey, mdfeKey, "0")))
	require.NoError(t, err)
	assert.True(t, doc.Processed)

	var protCount int64
	require.NoError(t, db.Model(&models.Protocol{}).Where("document_id = ?", doc.ID).Count(&protCount).Error)
	assert.Zero(t, protCount)

	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "disagrees with document key")
}

func TestNormalizeCTEMissingInfCte(t *testing.T) {
	n, repo, db := testNormalizer(t)
	ctx := context.Background()
	doc := makeDoc(t, repo, models.FamilyCTE, cteKey)

	_, err := n.NormalizeCTE(ctx, doc, parseXML(t, `<CTe><somethingElse/></CTe>`))
	require.Error(t, err)
	assert.False(t, doc.Processed)

	var reloaded models.Document
	require.NoError(t, db.First(&reloaded, doc.ID).Error)
	assert.False(t, reloaded.Processed)
}
