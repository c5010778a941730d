//go:build unit

package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	failing := newRecord(t, 1)
	passing := newRecord(t, 0)
	passing.Success = true
	passing.ReturnCode = 0
	passing.Duration = 2.5
	passing.TmpDiskUsedKB = 100
	passing.JUnit = nil
	crashed := newRecord(t, 2)
	crashed.ReturnCode = 137
	crashed.Duration = 30
	crashed.TmpDiskUsedKB = 9000000

	s := Summarize([]*Record{passing, failing, crashed})

	assert.Equal(t, 3, s.Iterations)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 2.5+12.345678+30, s.TotalDuration, 1e-9)
	assert.Equal(t, 30.0, s.MaxDuration)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 137: 1}, s.ExitCodes)
	assert.Equal(t, 2, s.Reports)
	assert.Equal(t, 2, s.FailingTests)
	assert.Equal(t, int64(100), s.MinDiskUsedKB)
	assert.Equal(t, int64(9000000), s.MaxDiskUsedKB)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.Iterations)
	assert.NotNil(t, s.ExitCodes)
	assert.Empty(t, s.ExitCodes)
}
