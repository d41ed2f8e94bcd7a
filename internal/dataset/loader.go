package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeExcel
	FileTypeParquet
)

// DetectFileType determines the type of file based on its extension
func DetectFileType(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FileTypeCSV
	case ".xlsx", ".xlsm":
		return FileTypeExcel
	case ".parquet":
		return FileTypeParquet
	default:
		return FileTypeUnknown
	}
}

type loadOptions struct {
	fallback encoding.Encoding
}

// LoadOption configures how text files are read
type LoadOption func(*loadOptions)

// WithFallbackEncoding sets the encoding used for text files that are not
// valid UTF-8. The default is Latin-1.
func WithFallbackEncoding(enc encoding.Encoding) LoadOption {
	return func(o *loadOptions) {
		if enc != nil {
			o.fallback = enc
		}
	}
}

// LookupEncoding resolves an IANA encoding name such as "latin1" or
// "windows-1252".
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: %s is not supported", ErrUnknownEncoding, name)
	}
	return enc, nil
}

func newLoadOptions(opts []LoadOption) loadOptions {
	o := loadOptions{fallback: charmap.ISO8859_1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load reads a data file into one or more datasets. Excel workbooks yield one
// dataset per sheet; other formats yield exactly one.
func Load(ctx context.Context, path string, opts ...LoadOption) ([]*Dataset, error) {
	switch DetectFileType(path) {
	case FileTypeCSV:
		ds, err := LoadCSV(path, opts...)
		if err != nil {
			return nil, err
		}
		return []*Dataset{ds}, nil
	case FileTypeExcel:
		return LoadExcel(path)
	case FileTypeParquet:
		ds, err := LoadParquet(ctx, path)
		if err != nil {
			return nil, err
		}
		return []*Dataset{ds}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// NameFromPath derives the dataset name from a file name
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadCSV reads a delimited text file. Non UTF-8 input is decoded with the
// fallback encoding, Latin-1 unless configured otherwise.
func LoadCSV(path string, opts ...LoadOption) (*Dataset, error) {
	o := newLoadOptions(opts)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	if !utf8.Valid(content) {
		content, err = o.fallback.NewDecoder().Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode CSV file: %w", err)
		}
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	separator := DetectSeparator(content)
	records, err := readDelimited(content, separator)
	if err != nil && separator != ';' {
		// Same fallback order as spreadsheets exported with a European locale
		records, err = readDelimited(content, ';')
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyData, filepath.Base(path))
	}

	header := normalizeHeader(records[0])
	columns, rows := inferColumns(header, records[1:])

	return New(NameFromPath(path), columns, rows)
}

func readDelimited(content []byte, separator rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = separator
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DetectSeparator picks the most frequent separator on the first line.
// Comma is the default when none is present.
func DetectSeparator(content []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() {
		return ','
	}
	firstLine := scanner.Text()

	best, maxCount := ',', 0
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(firstLine, string(sep)); n > maxCount {
			best, maxCount = sep, n
		}
	}
	return best
}

// LoadExcel reads every sheet of a workbook. Sheets without a header row are
// skipped.
func LoadExcel(path string) ([]*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var datasets []*Dataset
	for _, sheet := range f.GetSheetList() {
		records, err := f.GetRows(sheet)
		if err != nil {
			closeAll(datasets)
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(records) == 0 {
			continue
		}

		header := normalizeHeader(records[0])
		columns, rows := inferColumns(header, records[1:])

		ds, err := New(strings.ToUpper(sheet), columns, rows)
		if err != nil {
			closeAll(datasets)
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	if len(datasets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyData, filepath.Base(path))
	}
	return datasets, nil
}

func closeAll(datasets []*Dataset) {
	for _, ds := range datasets {
		_ = ds.Close()
	}
}
