package normalize

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

const (
	cteKey  = "35200114200166000187570010000001251000001256"
	mdfeKey = "35200158000000000000580010000000011000000017"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Document{},
		&models.Identification{},
		&models.Party{},
		&models.Freight{},
		&models.FreightComponent{},
		&models.Tax{},
		&models.Cargo{},
		&models.CargoQuantity{},
		&models.TransportedDocument{},
		&models.Insurance{},
		&models.RoadModal{},
		&models.Vehicle{},
		&models.Driver{},
		&models.AuthorizedViewer{},
		&models.TechResponsible{},
		&models.Protocol{},
		&models.Supplement{},
		&models.Totals{},
		&models.DocumentEvent{},
	))
	return db
}

func testNormalizer(t *testing.T) (*Normalizer, repository.Repository, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	repo := repository.NewRepository(db)
	return New(repo, log), repo, db
}

func makeDoc(t *testing.T, repo repository.Repository, family models.DocumentFamily, key string) *models.Document {
	t.Helper()
	doc := &models.Document{
		Family:     family,
		AccessKey:  key,
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateDocument(context.Background(), doc))
	return doc
}

func parseXML(t *testing.T, data string) xmlutil.Map {
	t.Helper()
	m, err := xmlutil.Parse([]byte(data))
	require.NoError(t, err)
	return m
}

// fullCTE builds a cteProc document exercising every section. protKey lets
// tests embed a disagreeing protocol key.
func fullCTE(key, protKey, toma string) string {
	return fmt.Sprintf(`<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="3.00">
<CTe><infCte Id="CTe%s" versao="3.00">
  <ide>
    <cUF>35</cUF><CFOP>5353</CFOP><natOp>TRANSPORTE RODOVIARIO</natOp>
    <mod>57</mod><serie>1</serie><nCT>125</nCT>
    <dhEmi>2020-01-15T10:30:00-03:00</dhEmi>
    <tpAmb>1</tpAmb><tpEmis>1</tpEmis><tpServ>0</tpServ><modal>01</modal>
    <cMunIni>3550308</cMunIni><xMunIni>SAO PAULO</xMunIni><UFIni>SP</UFIni>
    <cMunFim>3304557</cMunFim><xMunFim>RIO DE JANEIRO</xMunFim><UFFim>RJ</UFFim>
    <toma3><toma>%s</toma></toma3>
  </ide>
  <compl><xObs>ENTREGA NORMAL</xObs></compl>
  <emit><CNPJ>14200166000187</CNPJ><IE>123456789</IE><xNome>TRANSPORTES EXEMPLO LTDA</xNome>
    <enderEmit><xLgr>RUA UM</xLgr><nro>100</nro><xBairro>CENTRO</xBairro><cMun>3550308</cMun><xMun>SAO PAULO</xMun><CEP>01000-000</CEP><UF>SP</UF></enderEmit>
  </emit>
  <rem><CNPJ>11111111000111</CNPJ><xNome>REMETENTE SA</xNome>
    <enderReme><xLgr>RUA DOIS</xLgr><nro>200</nro><cMun>3550308</cMun><xMun>SAO PAULO</xMun><UF>SP</UF></enderReme>
  </rem>
  <dest><CNPJ>22222222000122</CNPJ><xNome>DESTINATARIO SA</xNome>
    <enderDest><xLgr>RUA TRES</xLgr><nro>300</nro><cMun>3304557</cMun><xMun>RIO DE JANEIRO</xMun><UF>RJ</UF></enderDest>
  </dest>
  <vPrest>
    <vTPrest>1500.50</vTPrest><vRec>1500.50</vRec>
    <Comp><xNome>FRETE PESO</xNome><vComp>1400.00</vComp></Comp>
    <Comp><xNome>PEDAGIO</xNome><vComp>100.50</vComp></Comp>
  </vPrest>
  <imp>
    <ICMS><ICMS00><CST>00</CST><vBC>1500.50</vBC><pICMS>12.00</pICMS><vICMS>180.06</vICMS></ICMS00></ICMS>
    <vTotTrib>255.08</vTotTrib>
  </imp>
  <infCTeNorm>
    <infCarga>
      <vCarga>25000.00</vCarga><proPred>ELETRONICOS</proPred>
      <infQ><cUnid>01</cUnid><tpMed>PESO BRUTO</tpMed><qCarga>1200.0000</qCarga></infQ>
      <infQ><cUnid>03</cUnid><tpMed>VOLUMES</tpMed><qCarga>10.0000</qCarga></infQ>
    </infCarga>
    <infDoc>
      <infNFe><chave>35200111111111000111550010000000011000000010</chave></infNFe>
      <infNFe><chave>35200111111111000111550010000000021000000021</chave></infNFe>
    </infDoc>
    <seg><respSeg>4</respSeg><xSeg>SEGURADORA EXEMPLO</xSeg><nApol>12345</nApol><nAver>67890</nAver></seg>
    <infModal versaoModal="3.00"><rodo>
      <RNTRC>12345678</RNTRC>
      <veic><placa>ABC1234</placa><RENAVAM>123456789</RENAVAM><tara>7000</tara><capKG>23000</capKG><UF>SP</UF></veic>
      <moto><xNome>JOSE DA SILVA</xNome><CPF>12345678901</CPF></moto>
    </rodo></infModal>
  </infCTeNorm>
  <autXML><CNPJ>33333333000133</CNPJ></autXML>
  <infRespTec><CNPJ>44444444000144</CNPJ><xContato>SUPORTE</xContato><email>suporte@exemplo.com.br</email><fone>1133334444</fone></infRespTec>
</infCte>
<infCTeSupl><qrCodCTe>https://dfe-portal.svrs.rs.gov.br/cte/qrCode?chCTe=%s</qrCodCTe></infCTeSupl>
</CTe>
<protCTe versao="3.00"><infProt>
  <chCTe>%s</chCTe><dhRecbto>2020-01-15T10:31:00-03:00</dhRecbto>
  <nProt>135200000000001</nProt><digVal>abc=</digVal><cStat>100</cStat><xMotivo>Autorizado o uso do CT-e</xMotivo>
</infProt></protCTe>
</cteProc>`, key, toma, key, protKey)
}

// minimalCTE is a bare CTe missing every defaultable field and carrying a
// shrunken component and quantity set
func minimalCTE(key string) string {
	return fmt.Sprintf(`<CTe xmlns="http://www.portalfiscal.inf.br/cte">
<infCte Id="CTe%s" versao="3.00">
  <ide><cUF>35</cUF><serie>1</serie></ide>
  <emit><CNPJ>14200166000187</CNPJ><xNome>TRANSPORTES EXEMPLO LTDA</xNome></emit>
  <vPrest><Comp><xNome>FRETE FOB</xNome><vComp>900.00</vComp></Comp></vPrest>
  <imp><ICMS><ICMS45><CST>45</CST></ICMS45></ICMS></imp>
  <infCTeNorm><infCarga>
    <infQ><cUnid>01</cUnid><tpMed>PESO BRUTO</tpMed><qCarga>500.0000</qCarga></infQ>
  </infCarga></infCTeNorm>
</infCte>
</CTe>`, key)
}

func fullMDFE(key string) string {
	return fmt.Sprintf(`<mdfeProc xmlns="http://www.portalfiscal.inf.br/mdfe" versao="3.00">
<MDFe><infMDFe Id="MDFe%s" versao="3.00">
  <ide>
    <cUF>35</cUF><tpAmb>1</tpAmb><mod>58</mod><serie>1</serie><nMDF>1</nMDF>
    <modal>1</modal><dhEmi>2020-01-15T08:00:00-03:00</dhEmi><tpEmis>1</tpEmis>
    <UFIni>SP</UFIni><UFFim>RJ</UFFim>
    <infMunCarrega><cMunCarrega>3550308</cMunCarrega><xMunCarrega>SAO PAULO</xMunCarrega></infMunCarrega>
  </ide>
  <emit><CNPJ>58000000000000</CNPJ><IE>987654321</IE><xNome>TRANSPORTADORA MANIFESTO LTDA</xNome>
    <enderEmit><xLgr>AV QUATRO</xLgr><nro>400</nro><cMun>3550308</cMun><xMun>SAO PAULO</xMun><UF>SP</UF></enderEmit>
  </emit>
  <infModal versaoModal="3.00"><rodo>
    <infANTT><RNTRC>87654321</RNTRC></infANTT>
    <veicTracao><placa>DEF5678</placa><tara>9000</tara><capKG>30000</capKG><UF>SP</UF>
      <condutor><xNome>PEDRO SOUZA</xNome><CPF>98765432100</CPF></condutor>
      <condutor><xNome>CARLOS LIMA</xNome><CPF>45678912300</CPF></condutor>
    </veicTracao>
    <veicReboque><placa>GHI9012</placa><tara>4000</tara><capKG>25000</capKG><UF>SP</UF></veicReboque>
  </rodo></infModal>
  <infDoc>
    <infMunDescarga><cMunDescarga>3304557</cMunDescarga><xMunDescarga>RIO DE JANEIRO</xMunDescarga>
      <infCTe><chCTe>%s</chCTe></infCTe>
    </infMunDescarga>
  </infDoc>
  <seg><infResp><respSeg>1</respSeg></infResp><infSeg><xSeg>SEGURADORA MANIFESTO</xSeg></infSeg><nApol>555</nApol><nAver>666</nAver></seg>
  <tot><qCTe>1</qCTe><vCarga>25000.00</vCarga><cUnid>01</cUnid><qCarga>1200.0000</qCarga></tot>
</infMDFe>
</MDFe>
<protMDFe versao="3.00"><infProt>
  <chMDFe>%s</chMDFe><dhRecbto>2020-01-15T08:01:00-03:00</dhRecbto>
  <nProt>935200000000002</nProt><cStat>100</cStat><xMotivo>Autorizado o uso do MDF-e</xMotivo>
</infProt></protMDFe>
</mdfeProc>`, key, cteKey, key)
}

func eventEnvelope(family, key, tpEvento, detail string) string {
	ch, root := "chCTe", "eventoCTe"
	if family == "mdfe" {
		ch, root = "chMDFe", "eventoMDFe"
	}
	return fmt.Sprintf(`<%s versao="3.00"><infEvento Id="ID%s%s01">
  <cOrgao>35</cOrgao><tpAmb>1</tpAmb><%s>%s</%s>
  <dhEvento>2020-01-16T09:00:00-03:00</dhEvento>
  <tpEvento>%s</tpEvento><nSeqEvento>1</nSeqEvento>
  <detEvento versaoEvento="3.00">%s</detEvento>
</infEvento></%s>`, root, tpEvento, key, ch, key, ch, tpEvento, detail, root)
}

func eventResponse(family, key, tpEvento, cStat string) string {
	ch, root := "chCTe", "retEventoCTe"
	if family == "mdfe" {
		ch, root = "chMDFe", "retEventoMDFe"
	}
	return fmt.Sprintf(`<%s versao="3.00"><infEvento>
  <tpAmb>1</tpAmb><cOrgao>35</cOrgao><cStat>%s</cStat>
  <xMotivo>Evento registrado e vinculado</xMotivo>
  <%s>%s</%s><tpEvento>%s</tpEvento><nSeqEvento>1</nSeqEvento>
  <nProt>135200000000099</nProt><dhRegEvento>2020-01-16T09:05:00-03:00</dhRegEvento>
</infEvento></%s>`, root, cStat, ch, key, ch, tpEvento, root)
}

func procEvent(family, key, tpEvento, detail string) string {
	root := "procEventoCTe"
	if family == "mdfe" {
		root = "procEventoMDFe"
	}
	return fmt.Sprintf(`<%s versao="3.00">%s%s</%s>`,
		root, eventEnvelope(family, key, tpEvento, detail), eventResponse(family, key, tpEvento, "135"), root)
}

const cancelDetail = `<evCancCTe><descEvento>Cancelamento</descEvento><nProt>135200000000001</nProt><xJust>ERRO DE PREENCHIMENTO NO DOCUMENTO</xJust></evCancCTe>`

const closureDetail = `<evEncMDFe><descEvento>Encerramento</descEvento><nProt>935200000000002</nProt><dtEnc>2020-01-17</dtEnc><cUF>33</cUF><cMun>3304557</cMun></evEncMDFe>`
