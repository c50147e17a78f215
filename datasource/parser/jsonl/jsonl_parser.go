package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-sif/quantiles"
	iutil "github.com/go-sif/quantiles/internal/util"
	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
)

// Column describes one aggregation argument, read from a gjson path
type Column struct {
	Path string
	Kind quantiles.PrimitiveKind
}

// ParserConf configures a JSONL Parser, suitable for JSON lines data
type ParserConf struct {
	KeyPath         string   // gjson path of the aggregation key. If empty, every row shares the key "".
	Columns         []Column // [REQUIRED] aggregation arguments, in argument order
	HeaderLines     int      // The number of lines to ignore from the beginning of the data. Defaults to 0.
	Comment         rune     // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize   int      // Maximum size in bytes of the buffer used to read lines
	IgnoreRowErrors bool     // iff true, skip unparseable lines and report them together instead of stopping at the first one
}

// Parser produces Rows from JSONL data
type Parser struct {
	conf *ParserConf
}

var _ quantiles.RowParser = (*Parser)(nil)

// CreateParser returns a new JSONL Parser. Values within the JSON which do not correspond to a Column are ignored.
func CreateParser(conf *ParserConf) *Parser {
	if conf.MaxBufferSize == 0 {
		conf.MaxBufferSize = bufio.MaxScanTokenSize
	}
	return &Parser{conf: conf}
}

// Arguments returns the argument descriptors of the Rows this Parser produces
func (p *Parser) Arguments() []quantiles.TypeDescriptor {
	args := make([]quantiles.TypeDescriptor, len(p.conf.Columns))
	for i, col := range p.conf.Columns {
		args[i] = quantiles.Primitive(col.Kind)
	}
	return args
}

// Parse reads every line of r into a Row. With IgnoreRowErrors, the Rows which could be parsed are
// returned alongside a *multierror.Error describing the rest.
func (p *Parser) Parse(r io.Reader) ([]quantiles.Row, error) {
	if len(p.conf.Columns) == 0 {
		return nil, fmt.Errorf("ParserConf.Columns must not be empty")
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	var rows []quantiles.Row
	var merr *multierror.Error
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= p.conf.HeaderLines {
			continue
		}
		line := scanner.Text()
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		if p.conf.Comment != 0 && strings.HasPrefix(line, string(p.conf.Comment)) {
			continue
		}
		row, err := p.ParseLine(line)
		if err != nil {
			err = fmt.Errorf("line %d: %w", lineNum, err)
			if !p.conf.IgnoreRowErrors {
				return nil, err
			}
			merr = multierror.Append(merr, err)
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if merr != nil {
		merr.ErrorFormat = iutil.FormatMultiError
		return rows, merr
	}
	return rows, nil
}

// ParseLine parses a single line of JSON into a Row
func (p *Parser) ParseLine(line string) (quantiles.Row, error) {
	if !gjson.Valid(line) {
		return quantiles.Row{}, fmt.Errorf("invalid JSON: %s", line)
	}
	doc := gjson.Parse(line)
	var key string
	if p.conf.KeyPath != "" {
		keyVal := doc.Get(p.conf.KeyPath)
		if !keyVal.Exists() || keyVal.Type == gjson.Null {
			return quantiles.Row{}, fmt.Errorf("key %s is missing", p.conf.KeyPath)
		}
		key = keyVal.String()
	}
	values := make([]interface{}, len(p.conf.Columns))
	for i, col := range p.conf.Columns {
		val, err := parseValue(doc.Get(col.Path), col)
		if err != nil {
			return quantiles.Row{}, err
		}
		values[i] = val
	}
	return quantiles.Row{Key: key, Values: values}, nil
}
