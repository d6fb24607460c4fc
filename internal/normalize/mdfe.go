package normalize

import (
	"context"
	"fmt"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

// NormalizeMDFE deep-parses one MDF-e into its section graph inside a
// single transaction, mirroring NormalizeCTE.
func (n *Normalizer) NormalizeMDFE(ctx context.Context, doc *models.Document, root xmlutil.Map) ([]string, error) {
	w := newWarnings(n.log, doc.AccessKey)

	rootName, content := xmlutil.Root(root)
	docMap := content
	var wrapper xmlutil.Map
	if rootName == "mdfeProc" {
		wrapper = content
		docMap = xmlutil.ChildMap(content, "MDFe")
	}
	inf := xmlutil.ChildMap(docMap, "infMDFe")
	if inf == nil {
		n.markUnprocessed(ctx, doc)
		return w.entries, fmt.Errorf("document %s carries no infMDFe block", doc.AccessKey)
	}
	if v := xmlutil.Attr(inf, "versao"); v != "" {
		doc.SchemaVersion = v
	}

	err := n.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := n.parseMDFEIdentification(ctx, tx, doc, inf, w); err != nil {
			return err
		}
		if err := n.parseMDFEIssuer(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseMDFERoadModal(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseMDFETransportedDocs(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseMDFETotals(ctx, tx, doc, inf, w); err != nil {
			return err
		}
		if err := n.parseInsurance(ctx, tx, doc, mdfeInsuranceRows(doc.ID, inf)); err != nil {
			return err
		}
		if err := n.parseAuthorizedViewers(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseTechResponsible(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseProtocol(ctx, tx, doc, wrapper, "protMDFe", "chMDFe", w); err != nil {
			return err
		}
		if err := n.parseSupplement(ctx, tx, doc, docMap, "infMDFeSupl", "qrCodMDFe"); err != nil {
			return err
		}

		doc.Processed = true
		return tx.SaveDocument(ctx, doc)
	})
	if err != nil {
		n.markUnprocessed(ctx, doc)
		return w.entries, err
	}
	return w.entries, nil
}

// parseMDFEIdentification upserts the ide block. The first loading city
// fills the origin fields.
func (n *Normalizer) parseMDFEIdentification(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map, w *warnings) error {
	ide := xmlutil.ChildMap(inf, "ide")
	carrega := xmlutil.ChildMap(ide, "infMunCarrega")

	rec := &models.Identification{
		DocumentID:     doc.ID,
		Number:         w.integer(ide, "ide", "nMDF", "nMDF"),
		Series:         toInt(xmlutil.Text(ide, "serie")),
		Model:          toInt(xmlutil.Text(ide, "mod")),
		EmittedAt:      xmlutil.ParseTime(xmlutil.Text(ide, "dhEmi")),
		Environment:    toInt(xmlutil.Text(ide, "tpAmb")),
		EmissionType:   toInt(xmlutil.Text(ide, "tpEmis")),
		Modal:          xmlutil.Text(ide, "modal"),
		OriginCityCode: xmlutil.Text(carrega, "cMunCarrega"),
		OriginCityName: xmlutil.Text(carrega, "xMunCarrega"),
		OriginUF:       xmlutil.Text(ide, "UFIni"),
		DestUF:         xmlutil.Text(ide, "UFFim"),
	}
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// parseMDFEIssuer replaces the party set; a manifest only carries its
// issuer
func (n *Normalizer) parseMDFEIssuer(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	var rows []models.Party
	if emit := xmlutil.ChildMap(inf, "emit"); emit != nil {
		rows = append(rows, buildParty(doc.ID, models.RoleIssuer, emit, "enderEmit"))
	}
	return tx.ReplaceChildren(ctx, &models.Party{}, docConds(doc.ID), rows)
}

// parseMDFERoadModal upserts the rodo block and replaces the vehicle and
// driver sets. Drivers ride under the traction vehicle in the XML but are
// owned by the document.
func (n *Normalizer) parseMDFERoadModal(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	rodo := xmlutil.ChildMap(inf, "infModal", "rodo")

	rec := &models.RoadModal{
		DocumentID: doc.ID,
		RNTRC:      xmlutil.Text(rodo, "infANTT", "RNTRC"),
	}
	if rec.RNTRC == "" {
		rec.RNTRC = xmlutil.Text(rodo, "RNTRC")
	}
	if err := tx.UpsertSingleton(ctx, docConds(doc.ID), rec); err != nil {
		return err
	}

	var vehicles []models.Vehicle
	var drivers []models.Driver
	if tracao := xmlutil.ChildMap(rodo, "veicTracao"); tracao != nil {
		vehicles = append(vehicles, buildVehicle(doc.ID, tracao, true))
		for _, cond := range xmlutil.ChildList(tracao, "condutor") {
			drivers = append(drivers, models.Driver{
				DocumentID: doc.ID,
				Name:       xmlutil.Text(cond, "xNome"),
				CPF:        xmlutil.Digits(xmlutil.Text(cond, "CPF")),
			})
		}
	}
	for _, reboque := range xmlutil.ChildList(rodo, "veicReboque") {
		vehicles = append(vehicles, buildVehicle(doc.ID, reboque, false))
	}
	if err := tx.ReplaceChildren(ctx, &models.Vehicle{}, docConds(doc.ID), vehicles); err != nil {
		return err
	}
	return tx.ReplaceChildren(ctx, &models.Driver{}, docConds(doc.ID), drivers)
}

func buildVehicle(docID uint, m xmlutil.Map, traction bool) models.Vehicle {
	tare, _ := xmlutil.ParseInt(xmlutil.Text(m, "tara"), 0)
	cap, _ := xmlutil.ParseInt(xmlutil.Text(m, "capKG"), 0)
	return models.Vehicle{
		DocumentID: docID,
		Plate:      xmlutil.Text(m, "placa"),
		Renavam:    xmlutil.Text(m, "RENAVAM"),
		TareKG:     tare,
		CapacityKG: cap,
		UF:         xmlutil.Text(m, "UF"),
		Traction:   traction,
	}
}

// parseMDFETransportedDocs replaces the transported-document set. Each
// reference keeps the discharge city it was listed under.
func (n *Normalizer) parseMDFETransportedDocs(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	infDoc := xmlutil.ChildMap(inf, "infDoc")
	var rows []models.TransportedDocument
	for _, descarga := range xmlutil.ChildList(infDoc, "infMunDescarga") {
		cityCode := xmlutil.Text(descarga, "cMunDescarga")
		cityName := xmlutil.Text(descarga, "xMunDescarga")
		for _, cte := range xmlutil.ChildList(descarga, "infCTe") {
			rows = append(rows, models.TransportedDocument{
				DocumentID: doc.ID,
				Kind:       "cte",
				AccessKey:  xmlutil.Digits(xmlutil.Text(cte, "chCTe")),
				CityCode:   cityCode,
				CityName:   cityName,
			})
		}
		for _, nfe := range xmlutil.ChildList(descarga, "infNFe") {
			rows = append(rows, models.TransportedDocument{
				DocumentID: doc.ID,
				Kind:       "nfe",
				AccessKey:  xmlutil.Digits(xmlutil.Text(nfe, "chNFe")),
				CityCode:   cityCode,
				CityName:   cityName,
			})
		}
	}
	return tx.ReplaceChildren(ctx, &models.TransportedDocument{}, docConds(doc.ID), rows)
}

// parseMDFETotals upserts the tot block
func (n *Normalizer) parseMDFETotals(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map, w *warnings) error {
	tot := xmlutil.ChildMap(inf, "tot")
	weight, _ := xmlutil.ParseDecimal(xmlutil.Text(tot, "qCarga"), 0)

	rec := &models.Totals{
		DocumentID:   doc.ID,
		WaybillCount: toInt(xmlutil.Text(tot, "qCTe")),
		InvoiceCount: toInt(xmlutil.Text(tot, "qNFe")),
		CargoValue:   w.decimal(tot, "tot", "vCarga", "vCarga"),
		UnitCode:     xmlutil.Text(tot, "cUnid"),
		CargoWeight:  weight,
	}
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// mdfeInsuranceRows reads the seg entries of a manifest
func mdfeInsuranceRows(docID uint, inf xmlutil.Map) []models.Insurance {
	var rows []models.Insurance
	for _, seg := range xmlutil.ChildList(inf, "seg") {
		rows = append(rows, models.Insurance{
			DocumentID:        docID,
			Responsible:       xmlutil.Text(seg, "infResp", "respSeg"),
			Insurer:           xmlutil.Text(seg, "infSeg", "xSeg"),
			PolicyNumber:      xmlutil.Text(seg, "nApol"),
			EndorsementNumber: xmlutil.Text(seg, "nAver"),
		})
	}
	return rows
}
