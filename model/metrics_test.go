package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsMeanReduce(t *testing.T) {
	var m Metrics
	m.Add(0.5, 1, 0.25, 2)
	m.Add(1, 3, 0.75, 4)

	s := m.Summary()
	require.InDelta(t, 0.75, s.CritAcc, 1e-9)
	require.InDelta(t, 2, s.CritLoss, 1e-9)
	require.InDelta(t, 0.5, s.ActAcc, 1e-9)
	require.InDelta(t, 3, s.ActLoss, 1e-9)
}

func TestMetricsEmptySummaryIsZero(t *testing.T) {
	var m Metrics
	require.Equal(t, Summary{}, m.Summary())
}

func TestSummaryString(t *testing.T) {
	s := Summary{CritAcc: 0.875, CritLoss: 0.123, ActAcc: 0.5, ActLoss: 1.5}
	require.Equal(t, "87.5% C_ACC 0.123 C_LOSS, 50.0% A_ACC 1.500 A_LOSS", s.String())
}
