package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jbapex/financeiro-api/models"
	"github.com/jbapex/financeiro-api/utils"
)

const (
	PreviewRows   = 10
	MaxImportRows = 20000
)

// DetectDelimiter picks the most frequent of ; , \t | in the header line.
func DetectDelimiter(header string) rune {
	best, bestCount := ',', 0
	for _, candidate := range []rune{';', ',', '\t', '|'} {
		if n := strings.Count(header, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func delimiterFromOption(option string) (rune, bool) {
	switch option {
	case "":
		return 0, false
	case "tab", "\\t", "\t":
		return '\t', true
	default:
		return []rune(option)[0], true
	}
}

// newCSVReader strips a UTF-8 BOM and configures the delimiter, sniffing it
// from the first line when not given.
func newCSVReader(r io.Reader, delimiter string) (*csv.Reader, rune, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	comma, ok := delimiterFromOption(delimiter)
	if !ok {
		firstLine, err := br.Peek(4096)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, 0, err
		}
		line := string(firstLine)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		comma = DetectDelimiter(line)
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader, comma, nil
}

func delimiterName(r rune) string {
	if r == '\t' {
		return "tab"
	}
	return string(r)
}

// PreviewCSV returns the header and the first rows without interpreting them.
func PreviewCSV(r io.Reader, delimiter string) (*models.ImportPreview, error) {
	reader, comma, err := newCSVReader(r, delimiter)
	if err != nil {
		return nil, err
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, invalidf("empty file")
	}
	if err != nil {
		return nil, invalidf("unreadable CSV: %v", err)
	}

	preview := &models.ImportPreview{Header: trimAll(header), Rows: [][]string{}, Delimiter: delimiterName(comma)}
	for len(preview.Rows) < PreviewRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidf("unreadable CSV: %v", err)
		}
		preview.Rows = append(preview.Rows, trimAll(record))
	}
	return preview, nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

type columnIndex map[string]int

func (ci columnIndex) get(record []string, column string) string {
	if column == "" {
		return ""
	}
	i, ok := ci[strings.ToLower(strings.TrimSpace(column))]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseTypeValue accepts the usual ways statements spell credit and debit.
func ParseTypeValue(raw string) (string, bool) {
	switch NormalizeLabel(raw) {
	case "receita", "entrada", "credito", "c", "cr", "r":
		return models.TypeReceita, true
	case "despesa", "saida", "debito", "d", "db":
		return models.TypeDespesa, true
	}
	return "", false
}

// ParseCSV validates every data line against the mapping. Valid rows come
// back normalized (positive amount plus type); invalid ones as row errors.
// Line numbers count the header as line 1.
func ParseCSV(r io.Reader, opts models.ImportOptions) ([]models.ImportedRow, []models.RowError, error) {
	m := opts.Mapping
	if m.Date == "" || m.Description == "" || m.Amount == "" {
		return nil, nil, invalidf("mapping must name the date, description and amount columns")
	}

	reader, _, err := newCSVReader(r, opts.Delimiter)
	if err != nil {
		return nil, nil, err
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, invalidf("empty file")
	}
	if err != nil {
		return nil, nil, invalidf("unreadable CSV: %v", err)
	}

	index := columnIndex{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{m.Date, m.Description, m.Amount, m.Type, m.Category, m.Notes} {
		if required == "" {
			continue
		}
		if _, ok := index[strings.ToLower(strings.TrimSpace(required))]; !ok {
			return nil, nil, invalidf("column %q not found in header", required)
		}
	}

	rows := []models.ImportedRow{}
	rowErrors := []models.RowError{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, models.RowError{Line: line, Error: err.Error()})
			continue
		}
		if isBlank(record) {
			continue
		}
		if len(rows) >= MaxImportRows {
			return nil, nil, invalidf("file exceeds %d rows", MaxImportRows)
		}

		row, err := parseRecord(index, record, opts)
		if err != nil {
			rowErrors = append(rowErrors, models.RowError{Line: line, Error: err.Error()})
			continue
		}
		row.Line = line
		rows = append(rows, *row)
	}

	return rows, rowErrors, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRecord(index columnIndex, record []string, opts models.ImportOptions) (*models.ImportedRow, error) {
	m := opts.Mapping

	date, err := utils.ParseDate(index.get(record, m.Date), opts.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", index.get(record, m.Date))
	}

	description := index.get(record, m.Description)
	if description == "" {
		return nil, fmt.Errorf("missing description")
	}
	if runes := []rune(description); len(runes) > 255 {
		description = string(runes[:255])
	}

	amount, err := utils.ParseAmount(index.get(record, m.Amount), opts.DecimalComma)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", index.get(record, m.Amount))
	}
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil, fmt.Errorf("amount is zero")
	}

	kind := models.TypeReceita
	if amount.IsNegative() {
		kind = models.TypeDespesa
	}
	if m.Type != "" {
		raw := index.get(record, m.Type)
		parsed, ok := ParseTypeValue(raw)
		if !ok {
			return nil, fmt.Errorf("invalid type %q", raw)
		}
		kind = parsed
	}

	return &models.ImportedRow{
		Date:         date,
		Description:  description,
		Amount:       amount.Abs(),
		SignedAmount: amount,
		Type:         kind,
		Category:     index.get(record, m.Category),
		Notes:        index.get(record, m.Notes),
	}, nil
}
