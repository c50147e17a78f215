package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sif/quantiles"
	"github.com/go-sif/quantiles/datasource/parser/jsonl"
	"github.com/go-sif/quantiles/engine"
	qerrors "github.com/go-sif/quantiles/errors"
	"github.com/go-sif/quantiles/evaluator"
	"github.com/go-sif/quantiles/sketch"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCorruptSketchDropsOnlyItsKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	conf := &jsonl.ParserConf{
		KeyPath: "id",
		Columns: []jsonl.Column{{Path: "s", Kind: quantiles.BinaryKind}},
	}
	lines := []string{
		`{"id": "a", "s": null}`,
		`{"id": "b", "s": "bm90IGEgc2tldGNo"}`,
	}

	_, err := runJSONL(context.Background(), t, evaluator.MergeStrings, conf, lines, nil, 2)
	var deserErr qerrors.DeserializationError
	require.True(t, errors.As(err, &deserErr))
	require.ErrorIs(t, err, sketch.ErrMalformed)

	res, err := runJSONL(context.Background(), t, evaluator.MergeStrings, conf, lines, &engine.Options{IgnoreKeyErrors: true}, 2)
	require.Nil(t, err)
	require.Equal(t, []string{"a"}, res.Keys())
	require.Nil(t, res.Summaries["a"])
	require.Len(t, res.Errors.Errors, 1)
}

func TestInvalidResolutionDropsOnlyItsKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	conf := &jsonl.ParserConf{
		KeyPath: "id",
		Columns: []jsonl.Column{{Path: "v", Kind: quantiles.DoubleKind}, {Path: "k", Kind: quantiles.IntKind}},
	}
	lines := []string{
		`{"id": "a", "v": 1, "k": 64}`,
		`{"id": "b", "v": 2, "k": 100}`,
	}
	res, err := runJSONL(context.Background(), t, evaluator.DataToDoubles, conf, lines, &engine.Options{IgnoreKeyErrors: true, SinglePass: true}, 1)
	require.Nil(t, err)
	require.Equal(t, []string{"a"}, res.Keys())
	require.Equal(t, 64, res.Summaries["a"].Summary.K())
	var resErr qerrors.InvalidResolutionError
	require.True(t, errors.As(res.Errors, &resErr))
	require.Equal(t, 100, resErr.K)
}
