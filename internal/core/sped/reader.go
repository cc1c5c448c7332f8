// internal/core/sped/reader.go
package sped

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrCountMismatch is returned when a count record disagrees with the content.
var ErrCountMismatch = errors.New("contagem de registros divergente")

const maxLineSize = 1024 * 1024

// closingRegisters maps each count record to the block it counts. 9999 counts
// the whole file and is handled separately.
var closingRegisters = []struct {
	register string
	block    string
}{
	{"0990", "0"},
	{"C990", "C"},
	{"E990", "E"},
	{"9990", "9"},
}

// DocumentSummary holds what the ledger declares for one C100 document.
type DocumentSummary struct {
	Key       string   `json:"key"`
	Number    string   `json:"number"`
	Total     float64  `json:"total"`
	Items     int      `json:"items"`
	IcmsTotal float64  `json:"icms_total"`
	Cfops     []string `json:"cfops"`
}

// CountCheck compares a declared count with the scanned one.
type CountCheck struct {
	Register string `json:"register"`
	Found    bool   `json:"found"`
	Declared int    `json:"declared"`
	Actual   int    `json:"actual"`
	OK       bool   `json:"ok"`
}

// VerifyReport is the result of scanning a ledger.
type VerifyReport struct {
	TotalLines int               `json:"total_lines"`
	Blocks     map[string]int    `json:"blocks"`
	Registers  map[string]int    `json:"registers"`
	Documents  []DocumentSummary `json:"documents"`
	Checks     []CountCheck      `json:"checks"`
	Valid      bool              `json:"valid"`
}

type scanState struct {
	report   VerifyReport
	closing  map[string]int
	declared map[string]int
	current  *DocumentSummary
	icms     decimal.Decimal
}

// Verify scans an ISO-8859-1 encoded ledger and checks every count record
// against the lines actually present.
func Verify(ledger io.Reader) (*VerifyReport, error) {
	decoder := charmap.ISO8859_1.NewDecoder()
	return verify(decoder.Reader(ledger))
}

// VerifyText is Verify for a ledger already held as a string.
func VerifyText(text string) (*VerifyReport, error) {
	return verify(strings.NewReader(text))
}

func verify(r io.Reader) (*VerifyReport, error) {
	st := &scanState{
		report: VerifyReport{
			Blocks:    make(map[string]int),
			Registers: make(map[string]int),
		},
		closing:  make(map[string]int),
		declared: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.consume(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("erro ao ler arquivo SPED: %w", err)
	}
	st.flushDocument()

	report := st.check()
	if !report.Valid {
		return report, ErrCountMismatch
	}
	return report, nil
}

func (st *scanState) consume(line string) {
	st.report.TotalLines++

	parts := strings.Split(line, "|")
	if len(parts) < 3 || parts[1] == "" {
		return
	}
	register := parts[1]
	st.report.Blocks[register[:1]]++
	st.report.Registers[register]++

	switch register {
	case "0990", "C990", "E990", "9990", "9999":
		st.closing[register] = parseCount(parts[2])
	case "9900":
		if len(parts) > 3 {
			st.declared[parts[2]] = parseCount(parts[3])
		}
	case "C100":
		st.flushDocument()
		if len(parts) > 12 {
			st.current = &DocumentSummary{
				Number: parts[8],
				Key:    parts[9],
				Total:  parseSpedValue(parts[12]).InexactFloat64(),
				Cfops:  []string{},
			}
		}
	case "C170":
		if st.current != nil && len(parts) > 16 {
			st.current.Items++
			st.icms = st.icms.Add(parseSpedValue(parts[16]))
			cfop := parts[11]
			found := false
			for _, existing := range st.current.Cfops {
				if existing == cfop {
					found = true
					break
				}
			}
			if !found {
				st.current.Cfops = append(st.current.Cfops, cfop)
			}
		}
	}
}

func (st *scanState) flushDocument() {
	if st.current == nil {
		return
	}
	st.current.IcmsTotal = st.icms.Round(2).InexactFloat64()
	st.report.Documents = append(st.report.Documents, *st.current)
	st.current = nil
	st.icms = decimal.Zero
}

func (st *scanState) check() *VerifyReport {
	report := &st.report
	report.Valid = true

	add := func(register string, actual int) {
		declared, found := st.closing[register]
		c := CountCheck{Register: register, Found: found, Declared: declared, Actual: actual}
		c.OK = found && declared == actual
		if !c.OK {
			report.Valid = false
		}
		report.Checks = append(report.Checks, c)
	}
	for _, cr := range closingRegisters {
		add(cr.register, report.Blocks[cr.block])
	}
	add("9999", report.TotalLines)

	for _, reg := range slices.Sorted(maps.Keys(st.declared)) {
		c := CountCheck{
			Register: "9900/" + reg,
			Found:    true,
			Declared: st.declared[reg],
			Actual:   report.Registers[reg],
		}
		c.OK = c.Declared == c.Actual
		if !c.OK {
			report.Valid = false
		}
		report.Checks = append(report.Checks, c)
	}
	return report
}

// EncodeLatin1 converts the ledger to ISO-8859-1, the encoding the fiscal
// validator expects. Characters outside the charset are replaced.
func EncodeLatin1(text string) ([]byte, error) {
	encoder := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	out, err := encoder.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("falha ao codificar arquivo SPED: %w", err)
	}
	return out, nil
}

func parseCount(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return -1
	}
	return n
}

// parseSpedValue reads a comma-decimal ledger value. Empty or invalid
// values count as zero.
func parseSpedValue(val string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(val), ",", ".", 1))
	if err != nil {
		return decimal.Zero
	}
	return d
}
