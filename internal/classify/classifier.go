package classify

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/xmlutil"
)

// Kind tags what one uploaded file turned out to be
type Kind string

const (
	// KindCTE is a principal CT-e document
	KindCTE Kind = "cte"
	// KindMDFE is a principal MDF-e document
	KindMDFE Kind = "mdfe"
	// KindUnknown is anything the classifier could not place
	KindUnknown Kind = "unknown"
)

// EventKind builds the classification tag for a lifecycle event file,
// e.g. "cte_cancel" or "mdfe_closure".
func EventKind(family models.DocumentFamily, eventCode string) Kind {
	return Kind(fmt.Sprintf("%s_%s", family, models.EventNameFromCode(eventCode)))
}

// File is one classified upload
type File struct {
	Filename string
	Index    int
	Data     []byte

	Kind          Kind
	Family        models.DocumentFamily
	EventCode     string
	AccessKey     string
	SchemaVersion string

	// Confirmed is true only when the file already carries the
	// authority's response (proc wrapper or response shape)
	Confirmed bool
	// IsResponse marks a standalone event response that still needs
	// pairing with its outbound envelope
	IsResponse bool
	// HasProtocol is true when a principal carries its own
	// authorization protocol
	HasProtocol bool

	// Root is the parsed document map, retained so the normalizer does
	// not parse twice. Nil when the file did not parse.
	Root xmlutil.Map

	Diagnostic string
}

// IsEvent reports whether the file is a lifecycle event of any family
func (f *File) IsEvent() bool {
	return f.Kind != KindCTE && f.Kind != KindMDFE && f.Kind != KindUnknown
}

// IsPrincipal reports whether the file is a principal document
func (f *File) IsPrincipal() bool {
	return f.Kind == KindCTE || f.Kind == KindMDFE
}

// Classifier inspects arbitrary unlabeled XML uploads
type Classifier struct {
	log *logrus.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(log *logrus.Logger) *Classifier {
	return &Classifier{log: log}
}

var (
	keyInFilename = regexp.MustCompile(`\d{44}`)
	keyInRawText  = regexp.MustCompile(`Id\s*=\s*"?[A-Za-z]*(\d{44})`)
)

// Classify determines the kind and access key of one file. It never
// returns an error: a malformed file classifies as unknown with a
// diagnostic so one bad upload cannot abort the batch.
func (c *Classifier) Classify(name string, index int, data []byte) *File {
	f := &File{Filename: name, Index: index, Data: data, Kind: KindUnknown}

	m, err := xmlutil.Parse(data)
	if err != nil {
		f.Diagnostic = fmt.Sprintf("unparseable XML: %v", err)
		f.AccessKey = c.keyFromName(name, data)
		c.log.WithFields(logrus.Fields{"file": name, "error": err}).Warn("File did not parse, classified as unknown")
		return f
	}
	f.Root = m

	rootName, content := xmlutil.Root(m)
	switch rootName {
	case "cteProc":
		c.classifyPrincipal(f, models.FamilyCTE, xmlutil.ChildMap(content, "CTe"), content)
	case "CTe":
		c.classifyPrincipal(f, models.FamilyCTE, content, nil)
	case "mdfeProc":
		c.classifyPrincipal(f, models.FamilyMDFE, xmlutil.ChildMap(content, "MDFe"), content)
	case "MDFe":
		c.classifyPrincipal(f, models.FamilyMDFE, content, nil)
	case "procEventoCTe", "procEventoMDFe":
		env := xmlutil.ChildMap(content, "eventoCTe")
		if env == nil {
			env = xmlutil.ChildMap(content, "eventoMDFe")
		}
		ret := xmlutil.ChildMap(content, "retEventoCTe")
		if ret == nil {
			ret = xmlutil.ChildMap(content, "retEventoMDFe")
		}
		c.classifyEvent(f, env, ret, true, false)
	case "eventoCTe", "eventoMDFe":
		c.classifyEvent(f, content, nil, false, false)
	case "retEventoCTe", "retEventoMDFe":
		c.classifyEvent(f, nil, content, true, true)
	default:
		f.Diagnostic = fmt.Sprintf("unrecognized root element %q", rootName)
		f.AccessKey = c.keyFromName(name, data)
	}

	return f
}

// classifyPrincipal fills f for a bare or proc-wrapped principal document.
// wrapper is the proc envelope when present, nil for the bare shape.
func (c *Classifier) classifyPrincipal(f *File, family models.DocumentFamily, doc, wrapper xmlutil.Map) {
	f.Family = family
	f.Kind = KindCTE
	infName, protName := "infCte", "protCTe"
	if family == models.FamilyMDFE {
		f.Kind = KindMDFE
		infName, protName = "infMDFe", "protMDFe"
	}

	inf := xmlutil.ChildMap(doc, infName)
	f.SchemaVersion = xmlutil.Attr(inf, "versao")

	key := xmlutil.Digits(xmlutil.Attr(inf, "Id"))
	if !xmlutil.IsAccessKey(key) {
		key = c.keyFromName(f.Filename, f.Data)
	}
	f.AccessKey = key
	if key == "" {
		f.Diagnostic = "no access key in id attribute, filename or raw text"
	}

	if wrapper != nil {
		f.Confirmed = true
		f.HasProtocol = xmlutil.Text(wrapper, protName, "infProt", "nProt") != ""
	}
}

// classifyEvent fills f for an event envelope, response or both
func (c *Classifier) classifyEvent(f *File, env, ret xmlutil.Map, confirmed, responseOnly bool) {
	inf := xmlutil.ChildMap(env, "infEvento")
	if inf == nil {
		inf = xmlutil.ChildMap(ret, "infEvento")
	}
	if inf == nil {
		f.Diagnostic = "event file carries no infEvento block"
		f.AccessKey = c.keyFromName(f.Filename, f.Data)
		return
	}

	// chCTe and chMDFe are mutually exclusive and select the family
	if key := xmlutil.Text(inf, "chCTe"); key != "" {
		f.Family = models.FamilyCTE
		f.AccessKey = xmlutil.Digits(key)
	} else if key := xmlutil.Text(inf, "chMDFe"); key != "" {
		f.Family = models.FamilyMDFE
		f.AccessKey = xmlutil.Digits(key)
	} else {
		f.Diagnostic = "event file carries neither chCTe nor chMDFe"
		f.AccessKey = c.keyFromName(f.Filename, f.Data)
	}
	if !xmlutil.IsAccessKey(f.AccessKey) {
		f.AccessKey = c.keyFromName(f.Filename, f.Data)
	}

	f.EventCode = xmlutil.Text(inf, "tpEvento")
	f.Confirmed = confirmed
	f.IsResponse = responseOnly
	if f.Family != "" {
		f.Kind = EventKind(f.Family, f.EventCode)
	}
}

// keyFromName falls back to a 44-digit run in the filename, then to a raw
// scan for the id-attribute pattern in the bytes
func (c *Classifier) keyFromName(name string, data []byte) string {
	if key := keyInFilename.FindString(name); key != "" {
		return key
	}
	if m := keyInRawText.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}
