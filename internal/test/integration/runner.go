package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/go-sif/quantiles/datasource/parser/jsonl"
	"github.com/go-sif/quantiles/engine"
	"github.com/go-sif/quantiles/evaluator"
	siftest "github.com/go-sif/quantiles/testing"
	"github.com/stretchr/testify/require"
)

// parses JSONL data and aggregates it on a local engine
func runJSONL[T any](ctx context.Context, t *testing.T, fn *evaluator.Function[T], conf *jsonl.ParserConf, lines []string, opts *engine.Options, numWorkers int) (*engine.Result[T], error) {
	parser := jsonl.CreateParser(conf)
	rows, err := parser.Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.Nil(t, err)
	return siftest.LocalRun(ctx, fn, parser.Arguments(), rows, opts, numWorkers)
}
