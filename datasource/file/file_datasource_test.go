package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sif/quantiles"
	"github.com/go-sif/quantiles/datasource/parser/jsonl"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir string, name string, content string) {
	require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", "{\"id\": \"x\", \"v\": 1}\n{\"id\": \"y\", \"v\": 2}\n")
	writeFile(t, dir, "b.jsonl", "{\"id\": \"x\", \"v\": 3}\n")
	writeFile(t, dir, "ignored.txt", "not json")

	parser := jsonl.CreateParser(&jsonl.ParserConf{
		KeyPath: "id",
		Columns: []jsonl.Column{{Path: "v", Kind: quantiles.DoubleKind}},
	})
	source := CreateDataSource(filepath.Join(dir, "*.jsonl"), parser)
	require.Len(t, source.Arguments(), 1)
	rows, err := source.Load(context.Background(), 1)
	require.Nil(t, err)
	require.Equal(t, []quantiles.Row{
		{Key: "x", Values: []interface{}{1.0}},
		{Key: "y", Values: []interface{}{2.0}},
		{Key: "x", Values: []interface{}{3.0}},
	}, rows)
}

func TestLoadRowErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", "{\"v\": 1}\nbroken\n")
	writeFile(t, dir, "b.jsonl", "{\"v\": \"two\"}\n{\"v\": 3}\n")
	conf := &jsonl.ParserConf{Columns: []jsonl.Column{{Path: "v", Kind: quantiles.LongKind}}}

	_, err := CreateDataSource(filepath.Join(dir, "*.jsonl"), jsonl.CreateParser(conf)).Load(context.Background(), 0)
	require.NotNil(t, err)
	_, ok := err.(*multierror.Error)
	require.False(t, ok)

	conf.IgnoreRowErrors = true
	rows, err := CreateDataSource(filepath.Join(dir, "*.jsonl"), jsonl.CreateParser(conf)).Load(context.Background(), 0)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 2)
	require.Len(t, rows, 2)
}

func TestLoadNoMatches(t *testing.T) {
	_, err := CreateDataSource(filepath.Join(t.TempDir(), "*.jsonl"), jsonl.CreateParser(&jsonl.ParserConf{})).Load(context.Background(), 0)
	require.NotNil(t, err)
}
