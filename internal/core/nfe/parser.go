// internal/core/nfe/parser.go
package nfe

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"sped-service/internal/domain"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	// ErrMalformedDocument is returned when the input is not well-formed XML.
	ErrMalformedDocument = errors.New("documento XML malformado")
	// ErrMissingRequiredElement is returned when infNFe, or an item's prod or ICMS block, is absent.
	ErrMissingRequiredElement = errors.New("elemento obrigatório ausente")
)

// infNFeXML mirrors the parts of <infNFe> the ledger needs.
type infNFeXML struct {
	ID  string `xml:"Id,attr"`
	Ide struct {
		NNF   string `xml:"nNF"`
		DhEmi string `xml:"dhEmi"`
		DEmi  string `xml:"dEmi"`
	} `xml:"ide"`
	Emit struct {
		CNPJ string `xml:"CNPJ"`
	} `xml:"emit"`
	Dest struct {
		CNPJ string `xml:"CNPJ"`
	} `xml:"dest"`
	Det   []detXML `xml:"det"`
	Total struct {
		ICMSTot struct {
			VNF string `xml:"vNF"`
		} `xml:"ICMSTot"`
	} `xml:"total"`
}

type detXML struct {
	Prod    *prodXML `xml:"prod"`
	Imposto struct {
		ICMS   *taxGroupXML `xml:"ICMS"`
		PIS    *taxGroupXML `xml:"PIS"`
		COFINS *taxGroupXML `xml:"COFINS"`
	} `xml:"imposto"`
}

type prodXML struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	NCM    string `xml:"NCM"`
	CFOP   string `xml:"CFOP"`
	UCom   string `xml:"uCom"`
	QCom   string `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
}

// taxGroupXML is an <ICMS>, <PIS> or <COFINS> container. Each holds exactly one
// regime-specific child (ICMS00, ICMS20, ICMSSN102, PISAliq, PISNT, ...).
type taxGroupXML struct {
	Variants []taxVariantXML `xml:",any"`
}

// taxVariantXML captures the fields shared by the regime variants. The variant
// is not dispatched on by XMLName; only its fields are read.
type taxVariantXML struct {
	XMLName xml.Name
	CST     string `xml:"CST"`
	VBC     string `xml:"vBC"`
	PICMS   string `xml:"pICMS"`
	VICMS   string `xml:"vICMS"`
}

func (g *taxGroupXML) first() *taxVariantXML {
	if g == nil || len(g.Variants) == 0 {
		return nil
	}
	return &g.Variants[0]
}

// Parse turns one NF-e XML document into an InvoiceRecord. The adjusted fields
// of the items are left empty.
func Parse(raw []byte) (domain.InvoiceRecord, error) {
	inf, err := decodeInfNFe(raw)
	if err != nil {
		return domain.InvoiceRecord{}, err
	}

	number := clean(inf.Ide.NNF)
	date := clean(inf.Ide.DhEmi)
	if date == "" {
		date = clean(inf.Ide.DEmi)
	}

	record := domain.InvoiceRecord{
		Key:           strings.TrimPrefix(clean(inf.ID), "NFe"),
		Number:        number,
		Date:          date,
		TotalValue:    parseNumber(inf.Total.ICMSTot.VNF),
		EmitterCnpj:   clean(inf.Emit.CNPJ),
		RecipientCnpj: clean(inf.Dest.CNPJ),
		Items:         make([]domain.LineItem, 0, len(inf.Det)),
	}

	for i, det := range inf.Det {
		item, err := buildItem(number, det)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		record.Items = append(record.Items, item)
	}
	return record, nil
}

func buildItem(number string, det detXML) (domain.LineItem, error) {
	if det.Prod == nil {
		return domain.LineItem{}, fmt.Errorf("%w: <prod>", ErrMissingRequiredElement)
	}
	icms := det.Imposto.ICMS.first()
	if icms == nil {
		return domain.LineItem{}, fmt.Errorf("%w: <ICMS>", ErrMissingRequiredElement)
	}

	prod := det.Prod
	code := clean(prod.CProd)
	item := domain.LineItem{
		ID:          number + "-" + code,
		Code:        code,
		Description: clean(prod.XProd),
		NCM:         clean(prod.NCM),
		Cfop:        clean(prod.CFOP),
		CstIcms:     clean(icms.CST),
		Unit:        clean(prod.UCom),
		Quantity:    parseNumber(prod.QCom),
		UnitValue:   parseNumber(prod.VUnCom),
		TotalValue:  parseNumber(prod.VProd),
		BcIcms:      parseNumber(icms.VBC),
		IcmsValue:   parseNumber(icms.VICMS),
		AliqIcms:    parseNumber(icms.PICMS),
	}
	if pis := det.Imposto.PIS.first(); pis != nil {
		item.CstPis = clean(pis.CST)
	}
	if cofins := det.Imposto.COFINS.first(); cofins != nil {
		item.CstCofins = clean(cofins.CST)
	}
	return item, nil
}

// decodeInfNFe walks the whole token stream so that syntax errors anywhere in
// the document are reported, and decodes the first <infNFe> found at any depth.
// Nothing but whitespace, comments and processing instructions may follow the
// root element.
func decodeInfNFe(raw []byte) (*infNFeXML, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.CharsetReader = charsetReader

	var (
		inf        *infNFeXML
		depth      int
		sawRoot    bool
		rootClosed bool
		tokenErr   error
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			tokenErr = err
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				tokenErr = fmt.Errorf("elemento <%s> após o elemento raiz", t.Name.Local)
				break
			}
			sawRoot = true
			if inf == nil && t.Name.Local == "infNFe" {
				var decoded infNFeXML
				if err := decoder.DecodeElement(&decoded, &t); err != nil {
					tokenErr = err
					break
				}
				inf = &decoded
				rootClosed = depth == 0
				continue
			}
			depth++
		case xml.EndElement:
			depth--
			rootClosed = depth == 0
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				tokenErr = errors.New("texto fora do elemento raiz")
			}
		}
		if tokenErr != nil {
			break
		}
	}

	if tokenErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, tokenErr)
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: nenhum elemento raiz encontrado", ErrMalformedDocument)
	}
	if inf == nil {
		return nil, fmt.Errorf("%w: <infNFe>", ErrMissingRequiredElement)
	}
	return inf, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("codificação não suportada: %s", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

// parseNumber resolves missing or non-numeric values to zero.
func parseNumber(val string) float64 {
	s := strings.TrimSpace(val)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
