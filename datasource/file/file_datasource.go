package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-sif/quantiles"
	iutil "github.com/go-sif/quantiles/internal/util"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// DataSource is a set of files containing Rows
type DataSource struct {
	glob   string
	parser quantiles.RowParser
}

// CreateDataSource is a factory for DataSources
func CreateDataSource(glob string, parser quantiles.RowParser) *DataSource {
	return &DataSource{glob: glob, parser: parser}
}

// Arguments returns the argument descriptors of the Rows this DataSource produces
func (fs *DataSource) Arguments() []quantiles.TypeDescriptor {
	return fs.parser.Arguments()
}

// Analyze returns the files which will be loaded, in sorted order
func (fs *DataSource) Analyze() ([]string, error) {
	matches, err := filepath.Glob(fs.glob)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %s produced 0 files", fs.glob)
	}
	return matches, nil
}

// Load parses every file, with at most parallelism files open at once (0 for no limit), and
// returns their Rows in file order. Row errors which the parser reports as a *multierror.Error
// are gathered across files and returned alongside the Rows.
func (fs *DataSource) Load(ctx context.Context, parallelism int) ([]quantiles.Row, error) {
	files, err := fs.Analyze()
	if err != nil {
		return nil, err
	}
	parsed := make([][]quantiles.Row, len(files))
	rowErrs := make([]*multierror.Error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("unable to open %s: %w", path, err)
			}
			defer f.Close()
			rows, err := fs.parser.Parse(f)
			if merr, ok := err.(*multierror.Error); ok {
				rowErrs[i] = merr
			} else if err != nil {
				return fmt.Errorf("unable to parse %s: %w", path, err)
			}
			parsed[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var rows []quantiles.Row
	var merr *multierror.Error
	for i := range files {
		rows = append(rows, parsed[i]...)
		if rowErrs[i] != nil {
			merr = multierror.Append(merr, rowErrs[i].Errors...)
		}
	}
	if merr != nil {
		merr.ErrorFormat = iutil.FormatMultiError
		return rows, merr
	}
	return rows, nil
}
