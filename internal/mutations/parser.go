package mutations

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-severity/internal/cache"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// Required column names. Each accepts the aliases in columnAliases.
const (
	ColSymbol      = "symbol"
	ColChrom       = "chrom"
	ColPos         = "pos"
	ColRef         = "ref"
	ColAlt         = "alt"
	ColConsequence = "consequence"
)

var requiredColumns = []string{ColSymbol, ColChrom, ColPos, ColRef, ColAlt, ColConsequence}

// columnAliases maps lowercase header names to the canonical column.
var columnAliases = map[string]string{
	"symbol":            ColSymbol,
	"hgnc":              ColSymbol,
	"gene":              ColSymbol,
	"hugo_symbol":       ColSymbol,
	"chrom":             ColChrom,
	"chr":               ColChrom,
	"chromosome":        ColChrom,
	"pos":               ColPos,
	"position":          ColPos,
	"start_position":    ColPos,
	"ref":               ColRef,
	"reference_allele":  ColRef,
	"alt":               ColAlt,
	"tumor_seq_allele2": ColAlt,
	"consequence":       ColConsequence,
	"cq":                ColConsequence,
}

// MissingColumnError reports a required column absent from the header.
type MissingColumnError struct {
	Column string
	Header string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("mutation table header lacks %q column", e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// ParseError represents an error during mutation table parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mutation table parse error at line %d: %s", e.Line, e.Message)
}

// Options controls filtering of loaded mutations.
type Options struct {
	// Indels keeps multi-base variants.
	Indels bool
}

// Parser reads mutations from a tab-delimited table.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	columns    map[string]int
	width      int
}

// NewParser creates a parser for the given file. Gzipped input is detected
// by its magic bytes.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mutation table: %w", err)
	}

	p := &Parser{file: file}
	br := bufio.NewReader(file)

	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeader finds the header line. Leading "#" lines are skipped unless
// they name every required column.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &ParseError{Line: p.lineNumber, Message: "no header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			continue
		}

		if trimmed, ok := strings.CutPrefix(line, "#"); ok {
			if cols, err := resolveColumns(trimmed); err == nil {
				p.setColumns(cols)
				return nil
			}
			continue
		}

		cols, err := resolveColumns(line)
		if err != nil {
			return err
		}
		p.setColumns(cols)
		return nil
	}
}

func (p *Parser) setColumns(cols map[string]int) {
	p.columns = cols
	for _, idx := range cols {
		p.width = max(p.width, idx+1)
	}
}

// resolveColumns maps required columns to their header indices. The first
// occurrence of a column wins.
func resolveColumns(header string) (map[string]int, error) {
	cols := make(map[string]int, len(requiredColumns))
	for i, name := range strings.Split(header, "\t") {
		canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, seen := cols[canonical]; !seen {
			cols[canonical] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			return nil, &MissingColumnError{Column: col, Header: header}
		}
	}
	return cols, nil
}

func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// Next reads the next mutation. Returns nil, nil at end of input.
func (p *Parser) Next() (*Mutation, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("read mutation line: %w", err)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseLine(line)
	}
}

func (p *Parser) parseLine(line string) (*Mutation, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < p.width {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", p.width, len(fields)),
		}
	}

	posStr := strings.TrimSpace(fields[p.columns[ColPos]])
	pos, err := strconv.ParseInt(posStr, 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", posStr),
		}
	}

	return &Mutation{
		Symbol:      strings.TrimSpace(fields[p.columns[ColSymbol]]),
		Chrom:       cache.NormalizeChrom(strings.TrimSpace(fields[p.columns[ColChrom]])),
		Pos:         pos,
		Ref:         strings.ToUpper(strings.TrimSpace(fields[p.columns[ColRef]])),
		Alt:         strings.ToUpper(strings.TrimSpace(fields[p.columns[ColAlt]])),
		Consequence: strings.TrimSpace(fields[p.columns[ColConsequence]]),
	}, nil
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// Genes holds observed mutations keyed by gene symbol.
type Genes map[string][]Mutation

// Symbols returns the gene symbols in sorted order.
func (g Genes) Symbols() []string {
	out := make([]string, 0, len(g))
	for s := range g {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of mutations.
func (g Genes) Count() int {
	n := 0
	for _, muts := range g {
		n += len(muts)
	}
	return n
}

// Load reads a mutation table and groups coding mutations by gene symbol.
func Load(path string, opts Options) (Genes, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return collect(p, opts)
}

// Read is Load over an io.Reader.
func Read(r io.Reader, opts Options) (Genes, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return collect(p, opts)
}

// collect keeps mutations with a missense-class or loss-of-function
// consequence, drops indels unless requested, and skips blank or "."
// symbols. Genes with no remaining mutations are absent.
func collect(p *Parser, opts Options) (Genes, error) {
	genes := make(Genes)
	for {
		m, err := p.Next()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return genes, nil
		}
		if m.Symbol == "" || m.Symbol == "." {
			continue
		}
		if !m.IsCoding() {
			continue
		}
		if !opts.Indels && m.IsIndel() {
			continue
		}
		genes[m.Symbol] = append(genes[m.Symbol], *m)
	}
}
