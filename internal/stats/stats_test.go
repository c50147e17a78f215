package stats

import (
	"testing"

	"github.com/go-sif/quantiles"
	"github.com/stretchr/testify/require"
)

func TestRunStatistics(t *testing.T) {
	rs := &RunStatistics{}
	rs.Start()
	done := rs.StartPhase(quantiles.CombinePartial)
	rs.AddRows(10)
	rs.AddRows(5)
	rs.AddPartials(quantiles.CombinePartial, 3)
	rs.AddSpill(100)
	rs.AddSpill(20)
	rs.AddKeyError()
	done()
	rs.Finish()

	require.EqualValues(t, 15, rs.GetNumRowsProcessed())
	require.Equal(t, []int64{0, 3, 0, 0}, rs.GetNumPartialsProcessed())
	require.EqualValues(t, 2, rs.GetNumSpills())
	require.EqualValues(t, 120, rs.GetSpilledBytes())
	require.EqualValues(t, 1, rs.GetNumKeyErrors())
	require.Greater(t, int64(rs.GetPhaseRuntimes()[quantiles.CombinePartial]), int64(-1))
	require.Equal(t, rs.GetRuntime(), rs.GetRuntime())
	require.False(t, rs.GetStartTime().IsZero())
}
