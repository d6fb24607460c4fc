package normalize

import (
	"context"
	"fmt"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

// icmsVariants are the tax-calculation sub-groups a CT-e may carry, in
// lookup order
var icmsVariants = []string{"ICMS00", "ICMS20", "ICMS45", "ICMS60", "ICMS90", "ICMSOutraUF", "ICMSSN"}

// NormalizeCTE deep-parses one CT-e into its section graph inside a single
// transaction. On success the document is flagged processed; on failure
// every section write rolls back and the flag stays false.
func (n *Normalizer) NormalizeCTE(ctx context.Context, doc *models.Document, root xmlutil.Map) ([]string, error) {
	w := newWarnings(n.log, doc.AccessKey)

	rootName, content := xmlutil.Root(root)
	docMap := content
	var wrapper xmlutil.Map
	if rootName == "cteProc" {
		wrapper = content
		docMap = xmlutil.ChildMap(content, "CTe")
	}
	inf := xmlutil.ChildMap(docMap, "infCte")
	if inf == nil {
		n.markUnprocessed(ctx, doc)
		return w.entries, fmt.Errorf("document %s carries no infCte block", doc.AccessKey)
	}
	if v := xmlutil.Attr(inf, "versao"); v != "" {
		doc.SchemaVersion = v
	}

	err := n.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		payerRole, err := n.parseCTEIdentification(ctx, tx, doc, inf, w)
		if err != nil {
			return err
		}
		if err := n.parseCTEParties(ctx, tx, doc, inf); err != nil {
			return err
		}
		components, err := n.parseCTEFreight(ctx, tx, doc, inf, w)
		if err != nil {
			return err
		}
		if err := n.parseCTETax(ctx, tx, doc, inf); err != nil {
			return err
		}
		norm := xmlutil.ChildMap(inf, "infCTeNorm")
		if err := n.parseCTECargo(ctx, tx, doc, norm, w); err != nil {
			return err
		}
		if err := n.parseCTETransportedDocs(ctx, tx, doc, norm); err != nil {
			return err
		}
		if err := n.parseInsurance(ctx, tx, doc, cteInsuranceRows(doc.ID, inf, norm)); err != nil {
			return err
		}
		if err := n.parseCTERoadModal(ctx, tx, doc, norm); err != nil {
			return err
		}
		if err := n.parseAuthorizedViewers(ctx, tx, doc, inf); err != nil {
			return err
		}
		if err := n.parseTechResponsible(ctx, tx, doc, inf); err != nil {
			return err
		}
		// Protocol and supplementary QR are independent of processed
		if err := n.parseProtocol(ctx, tx, doc, wrapper, "protCTe", "chCTe", w); err != nil {
			return err
		}
		if err := n.parseSupplement(ctx, tx, doc, docMap, "infCTeSupl", "qrCodCTe"); err != nil {
			return err
		}

		// Derived only after all sections parsed
		doc.Modality = deriveModality(payerRole, components, xmlutil.Text(inf, "compl", "xObs"))
		doc.Processed = true
		return tx.SaveDocument(ctx, doc)
	})
	if err != nil {
		n.markUnprocessed(ctx, doc)
		return w.entries, err
	}
	return w.entries, nil
}

// parseCTEIdentification upserts the ide block and returns the payer-role
// code for the modality derivation
func (n *Normalizer) parseCTEIdentification(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map, w *warnings) (string, error) {
	ide := xmlutil.ChildMap(inf, "ide")

	payerRole := xmlutil.Text(ide, "toma3", "toma")
	if payerRole == "" {
		payerRole = xmlutil.Text(ide, "toma4", "toma")
	}

	rec := &models.Identification{
		DocumentID:      doc.ID,
		Number:          w.integer(ide, "ide", "nCT", "nCT"),
		Series:          toInt(xmlutil.Text(ide, "serie")),
		Model:           toInt(xmlutil.Text(ide, "mod")),
		EmittedAt:       xmlutil.ParseTime(xmlutil.Text(ide, "dhEmi")),
		OperationNature: w.str(ide, "ide", "natOp", "natOp"),
		CFOP:            xmlutil.Text(ide, "CFOP"),
		Environment:     toInt(xmlutil.Text(ide, "tpAmb")),
		EmissionType:    toInt(xmlutil.Text(ide, "tpEmis")),
		Modal:           xmlutil.Text(ide, "modal"),
		ServiceType:     toInt(xmlutil.Text(ide, "tpServ")),
		OriginCityCode:  xmlutil.Text(ide, "cMunIni"),
		OriginCityName:  xmlutil.Text(ide, "xMunIni"),
		OriginUF:        xmlutil.Text(ide, "UFIni"),
		DestCityCode:    xmlutil.Text(ide, "cMunFim"),
		DestCityName:    xmlutil.Text(ide, "xMunFim"),
		DestUF:          xmlutil.Text(ide, "UFFim"),
		PayerRole:       payerRole,
	}
	return payerRole, tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// cteParty maps an involved-party element to its role and address element
var cteParties = []struct {
	element string
	role    models.PartyRole
	address string
}{
	{"emit", models.RoleIssuer, "enderEmit"},
	{"rem", models.RoleSender, "enderReme"},
	{"exped", models.RoleDispatcher, "enderExped"},
	{"receb", models.RoleReceiver, "enderReceb"},
	{"dest", models.RoleRecipient, "enderDest"},
}

// parseCTEParties fully replaces the involved-party set of the document
func (n *Normalizer) parseCTEParties(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	var rows []models.Party
	for _, p := range cteParties {
		m := xmlutil.ChildMap(inf, p.element)
		if m == nil {
			continue
		}
		rows = append(rows, buildParty(doc.ID, p.role, m, p.address))
	}
	return tx.ReplaceChildren(ctx, &models.Party{}, docConds(doc.ID), rows)
}

// buildParty reads one party block with its address shape
func buildParty(docID uint, role models.PartyRole, m xmlutil.Map, addrName string) models.Party {
	addr := xmlutil.ChildMap(m, addrName)
	return models.Party{
		DocumentID: docID,
		Role:       role,
		CNPJ:       xmlutil.Digits(xmlutil.Text(m, "CNPJ")),
		CPF:        xmlutil.Digits(xmlutil.Text(m, "CPF")),
		IE:         xmlutil.Text(m, "IE"),
		Name:       xmlutil.Text(m, "xNome"),
		TradeName:  xmlutil.Text(m, "xFant"),
		Street:     xmlutil.Text(addr, "xLgr"),
		Number:     xmlutil.Text(addr, "nro"),
		Complement: xmlutil.Text(addr, "xCpl"),
		District:   xmlutil.Text(addr, "xBairro"),
		CityCode:   xmlutil.Text(addr, "cMun"),
		CityName:   xmlutil.Text(addr, "xMun"),
		UF:         xmlutil.Text(addr, "UF"),
		ZipCode:    xmlutil.Digits(xmlutil.Text(addr, "CEP")),
		Phone:      xmlutil.Text(m, "fone"),
		Email:      xmlutil.Text(m, "email"),
	}
}

// parseCTEFreight upserts the vPrest block and replaces its component set.
// Returns the component names for the modality derivation.
func (n *Normalizer) parseCTEFreight(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map, w *warnings) ([]string, error) {
	prest := xmlutil.ChildMap(inf, "vPrest")

	rec := &models.Freight{
		DocumentID:      doc.ID,
		TotalValue:      w.decimal(prest, "vPrest", "vTPrest", "vTPrest"),
		ReceivableValue: w.decimal(prest, "vPrest", "vRec", "vRec"),
	}
	if err := tx.UpsertSingleton(ctx, docConds(doc.ID), rec); err != nil {
		return nil, err
	}

	var rows []models.FreightComponent
	var names []string
	for _, comp := range xmlutil.ChildList(prest, "Comp") {
		name := xmlutil.Text(comp, "xNome")
		value, _ := xmlutil.ParseDecimal(xmlutil.Text(comp, "vComp"), 0)
		rows = append(rows, models.FreightComponent{DocumentID: doc.ID, Name: name, Value: value})
		names = append(names, name)
	}
	return names, tx.ReplaceChildren(ctx, &models.FreightComponent{}, docConds(doc.ID), rows)
}

// parseCTETax upserts the imp block, keeping whichever ICMS sub-variant
// the XML carries
func (n *Normalizer) parseCTETax(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	imp := xmlutil.ChildMap(inf, "imp")
	icms := xmlutil.ChildMap(imp, "ICMS")

	rec := &models.Tax{DocumentID: doc.ID}
	for _, variant := range icmsVariants {
		m := xmlutil.ChildMap(icms, variant)
		if m == nil {
			continue
		}
		rec.Variant = variant
		rec.CST = xmlutil.Text(m, "CST")
		rec.BaseValue, _ = xmlutil.ParseDecimal(xmlutil.Text(m, "vBC"), 0)
		rec.Rate, _ = xmlutil.ParseDecimal(xmlutil.Text(m, "pICMS"), 0)
		rec.Value, _ = xmlutil.ParseDecimal(xmlutil.Text(m, "vICMS"), 0)
		break
	}
	rec.TotalTributes, _ = xmlutil.ParseDecimal(xmlutil.Text(imp, "vTotTrib"), 0)
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// parseCTECargo upserts the infCarga block and replaces its quantity set
func (n *Normalizer) parseCTECargo(ctx context.Context, tx repository.Repository, doc *models.Document, norm xmlutil.Map, w *warnings) error {
	carga := xmlutil.ChildMap(norm, "infCarga")

	rec := &models.Cargo{
		DocumentID:  doc.ID,
		Value:       w.decimal(carga, "infCarga", "vCarga", "vCarga"),
		Product:     w.str(carga, "infCarga", "proPred", "proPred"),
		OtherTraits: xmlutil.Text(carga, "xOutCat"),
	}
	if err := tx.UpsertSingleton(ctx, docConds(doc.ID), rec); err != nil {
		return err
	}

	var rows []models.CargoQuantity
	for _, q := range xmlutil.ChildList(carga, "infQ") {
		qty, _ := xmlutil.ParseDecimal(xmlutil.Text(q, "qCarga"), 0)
		rows = append(rows, models.CargoQuantity{
			DocumentID:  doc.ID,
			UnitCode:    xmlutil.Text(q, "cUnid"),
			MeasureType: xmlutil.Text(q, "tpMed"),
			Quantity:    qty,
		})
	}
	return tx.ReplaceChildren(ctx, &models.CargoQuantity{}, docConds(doc.ID), rows)
}

// parseCTETransportedDocs replaces the transported-document reference set
func (n *Normalizer) parseCTETransportedDocs(ctx context.Context, tx repository.Repository, doc *models.Document, norm xmlutil.Map) error {
	infDoc := xmlutil.ChildMap(norm, "infDoc")
	var rows []models.TransportedDocument
	for _, nfe := range xmlutil.ChildList(infDoc, "infNFe") {
		rows = append(rows, models.TransportedDocument{
			DocumentID: doc.ID,
			Kind:       "nfe",
			AccessKey:  xmlutil.Digits(xmlutil.Text(nfe, "chave")),
		})
	}
	for _, nf := range xmlutil.ChildList(infDoc, "infNF") {
		rows = append(rows, models.TransportedDocument{
			DocumentID: doc.ID,
			Kind:       "nf",
			Number:     xmlutil.Text(nf, "nDoc"),
		})
	}
	for _, other := range xmlutil.ChildList(infDoc, "infOutros") {
		rows = append(rows, models.TransportedDocument{
			DocumentID: doc.ID,
			Kind:       "other",
			Number:     xmlutil.Text(other, "nDoc"),
		})
	}
	return tx.ReplaceChildren(ctx, &models.TransportedDocument{}, docConds(doc.ID), rows)
}

// cteInsuranceRows reads the seg entries, tolerating both the normalized
// placement and older layouts directly under infCte
func cteInsuranceRows(docID uint, inf, norm xmlutil.Map) []models.Insurance {
	segs := xmlutil.ChildList(norm, "seg")
	if len(segs) == 0 {
		segs = xmlutil.ChildList(inf, "seg")
	}
	var rows []models.Insurance
	for _, seg := range segs {
		rows = append(rows, models.Insurance{
			DocumentID:        docID,
			Responsible:       xmlutil.Text(seg, "respSeg"),
			Insurer:           xmlutil.Text(seg, "xSeg"),
			PolicyNumber:      xmlutil.Text(seg, "nApol"),
			EndorsementNumber: xmlutil.Text(seg, "nAver"),
		})
	}
	return rows
}

// parseInsurance replaces the insurance set
func (n *Normalizer) parseInsurance(ctx context.Context, tx repository.Repository, doc *models.Document, rows []models.Insurance) error {
	return tx.ReplaceChildren(ctx, &models.Insurance{}, docConds(doc.ID), rows)
}

// parseCTERoadModal upserts the rodo block and replaces its vehicle and
// driver sets
func (n *Normalizer) parseCTERoadModal(ctx context.Context, tx repository.Repository, doc *models.Document, norm xmlutil.Map) error {
	rodo := xmlutil.ChildMap(norm, "infModal", "rodo")

	rec := &models.RoadModal{
		DocumentID: doc.ID,
		RNTRC:      xmlutil.Text(rodo, "RNTRC"),
	}
	if err := tx.UpsertSingleton(ctx, docConds(doc.ID), rec); err != nil {
		return err
	}

	var vehicles []models.Vehicle
	for _, veic := range xmlutil.ChildList(rodo, "veic") {
		tare, _ := xmlutil.ParseInt(xmlutil.Text(veic, "tara"), 0)
		cap, _ := xmlutil.ParseInt(xmlutil.Text(veic, "capKG"), 0)
		vehicles = append(vehicles, models.Vehicle{
			DocumentID: doc.ID,
			Plate:      xmlutil.Text(veic, "placa"),
			Renavam:    xmlutil.Text(veic, "RENAVAM"),
			TareKG:     tare,
			CapacityKG: cap,
			UF:         xmlutil.Text(veic, "UF"),
		})
	}
	if err := tx.ReplaceChildren(ctx, &models.Vehicle{}, docConds(doc.ID), vehicles); err != nil {
		return err
	}

	var drivers []models.Driver
	for _, moto := range xmlutil.ChildList(rodo, "moto") {
		drivers = append(drivers, models.Driver{
			DocumentID: doc.ID,
			Name:       xmlutil.Text(moto, "xNome"),
			CPF:        xmlutil.Digits(xmlutil.Text(moto, "CPF")),
		})
	}
	return tx.ReplaceChildren(ctx, &models.Driver{}, docConds(doc.ID), drivers)
}

// parseAuthorizedViewers replaces the autXML set
func (n *Normalizer) parseAuthorizedViewers(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	var rows []models.AuthorizedViewer
	for _, aut := range xmlutil.ChildList(inf, "autXML") {
		taxID := xmlutil.Digits(xmlutil.Text(aut, "CNPJ"))
		if taxID == "" {
			taxID = xmlutil.Digits(xmlutil.Text(aut, "CPF"))
		}
		if taxID == "" {
			continue
		}
		rows = append(rows, models.AuthorizedViewer{DocumentID: doc.ID, TaxID: taxID})
	}
	return tx.ReplaceChildren(ctx, &models.AuthorizedViewer{}, docConds(doc.ID), rows)
}

// parseTechResponsible upserts the infRespTec block when present
func (n *Normalizer) parseTechResponsible(ctx context.Context, tx repository.Repository, doc *models.Document, inf xmlutil.Map) error {
	rt := xmlutil.ChildMap(inf, "infRespTec")
	if rt == nil {
		return nil
	}
	rec := &models.TechResponsible{
		DocumentID: doc.ID,
		CNPJ:       xmlutil.Digits(xmlutil.Text(rt, "CNPJ")),
		Contact:    xmlutil.Text(rt, "xContato"),
		Email:      xmlutil.Text(rt, "email"),
		Phone:      xmlutil.Text(rt, "fone"),
	}
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// parseProtocol upserts the authorization protocol from a proc wrapper.
// A protocol whose embedded key disagrees with the document's key is
// discarded with a warning; the rest of the parse continues.
func (n *Normalizer) parseProtocol(ctx context.Context, tx repository.Repository, doc *models.Document, wrapper xmlutil.Map, protName, keyField string, w *warnings) error {
	if wrapper == nil {
		return nil
	}
	prot := xmlutil.ChildMap(wrapper, protName, "infProt")
	if prot == nil {
		return nil
	}
	embedded := xmlutil.Digits(xmlutil.Text(prot, keyField))
	if embedded != "" && embedded != doc.AccessKey {
		w.add("protocol", fmt.Sprintf("embedded key %s disagrees with document key, protocol discarded", embedded))
		return nil
	}
	status, _ := xmlutil.ParseInt(xmlutil.Text(prot, "cStat"), 0)
	rec := &models.Protocol{
		DocumentID:   doc.ID,
		AccessKey:    embedded,
		Number:       xmlutil.Text(prot, "nProt"),
		StatusCode:   status,
		StatusReason: xmlutil.Text(prot, "xMotivo"),
		ReceivedAt:   xmlutil.ParseTime(xmlutil.Text(prot, "dhRecbto")),
		DigestValue:  xmlutil.Text(prot, "digVal"),
	}
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// parseSupplement upserts the supplementary QR payload when present
func (n *Normalizer) parseSupplement(ctx context.Context, tx repository.Repository, doc *models.Document, docMap xmlutil.Map, suplName, qrField string) error {
	supl := xmlutil.ChildMap(docMap, suplName)
	if supl == nil {
		return nil
	}
	rec := &models.Supplement{
		DocumentID: doc.ID,
		QRCode:     xmlutil.Text(supl, qrField),
	}
	return tx.UpsertSingleton(ctx, docConds(doc.ID), rec)
}

// docConds is the parent condition shared by every section primitive call
func docConds(docID uint) map[string]interface{} {
	return map[string]interface{}{"document_id": docID}
}

// toInt is the optional-field integer coercion: missing input is zero, no
// warning
func toInt(s string) int {
	v, _ := xmlutil.ParseInt(s, 0)
	return v
}
