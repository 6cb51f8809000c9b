package results

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fitrunner/internal/models"
)

func doc(ordinal int, name string, s models.Summary) DocumentResult {
	return DocumentResult{Ordinal: ordinal, Path: models.ParsePath("SuitePage." + name), DisplayName: name, Summary: s}
}

func TestAggregator_TestOneTestTwoScenario(t *testing.T) {
	a := NewAggregator("run", models.ParsePath("SuitePage"), time.Now())
	require.NoError(t, a.Add(doc(1, "TestOne", models.Summary{Right: 1})))
	require.NoError(t, a.Add(doc(2, "TestTwo", models.Summary{Wrong: 2})))

	final := a.Final(time.Now(), false)
	assert.Equal(t, models.Summary{Right: 1, Wrong: 2}, final.Summary)
	assert.Equal(t, models.Summary{Right: 1, Wrong: 1}, final.Pages)
	assert.Greater(t, final.ExitCode(), 0)
	assert.Equal(t, 2, final.ExitCode())
	assert.Equal(t, "TestTwo2", final.Documents[1].Anchor())
}

func TestAggregator_AllPassingExitsZero(t *testing.T) {
	a := NewAggregator("run", nil, time.Now())
	require.NoError(t, a.Add(doc(1, "TestOne", models.Summary{Right: 1})))
	require.NoError(t, a.Add(doc(2, "TestTwo", models.Summary{Right: 1, Ignores: 3})))
	assert.Equal(t, 0, a.ExitCode())

	a = NewAggregator("run", nil, time.Now())
	require.NoError(t, a.Add(doc(1, "TestOne", models.Summary{Right: 1})))
	require.NoError(t, a.Add(doc(2, "TestTwo", models.Summary{Right: 1, Exceptions: 1})))
	assert.Equal(t, 1, a.ExitCode())
}

func TestAggregator_EmptySuite(t *testing.T) {
	final := NewAggregator("run", nil, time.Now()).Final(time.Now(), false)
	assert.Equal(t, models.Summary{}, final.Summary)
	assert.Equal(t, 0, final.ExitCode())
	assert.Empty(t, final.Documents)
}

func TestAggregator_RejectsOutOfOrderOrdinals(t *testing.T) {
	a := NewAggregator("run", nil, time.Now())
	assert.Error(t, a.Add(doc(2, "TestTwo", models.Summary{})))
	require.NoError(t, a.Add(doc(1, "TestOne", models.Summary{})))
	assert.Error(t, a.Add(doc(1, "TestOne", models.Summary{})))

	a.Final(time.Now(), false)
	assert.Error(t, a.Add(doc(2, "TestTwo", models.Summary{})))
}

func TestAggregator_FinalIsSumInAnyOrder(t *testing.T) {
	summaries := make([]models.Summary, 20)
	var want models.Summary
	for i := range summaries {
		summaries[i] = models.Summary{Right: rand.Intn(5), Wrong: rand.Intn(3), Ignores: rand.Intn(2), Exceptions: rand.Intn(2)}
		want = want.Add(summaries[i])
	}
	rand.Shuffle(len(summaries), func(i, j int) { summaries[i], summaries[j] = summaries[j], summaries[i] })

	a := NewAggregator("run", nil, time.Now())
	for i, s := range summaries {
		require.NoError(t, a.Add(doc(i+1, "T", s)))
	}
	assert.Equal(t, want, a.Final(time.Now(), false).Summary)
}

func TestAggregator_PartialDuringRun(t *testing.T) {
	a := NewAggregator("run", nil, time.Now())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			_ = a.Add(doc(i, "T", models.Summary{Right: 1}))
		}
	}()
	for i := 0; i < 50; i++ {
		p := a.Partial()
		assert.LessOrEqual(t, p.Right, 100)
	}
	wg.Wait()
	assert.Equal(t, 100, a.Partial().Right)
	assert.Equal(t, 100, a.Count())
}

func TestFinalIsStable(t *testing.T) {
	a := NewAggregator("run", nil, time.Now())
	first := a.Final(time.Now(), true)
	second := a.Final(time.Now().Add(time.Hour), false)
	assert.Same(t, first, second)
	assert.True(t, second.Stopped)
}

func TestTally(t *testing.T) {
	assert.Equal(t, models.Summary{Wrong: 1}, models.Summary{Right: 3, Wrong: 1, Exceptions: 1}.Tally())
	assert.Equal(t, models.Summary{Exceptions: 1}, models.Summary{Right: 3, Exceptions: 1}.Tally())
	assert.Equal(t, models.Summary{Wrong: 1}, models.Summary{Right: 3, Wrong: 1}.Tally())
	assert.Equal(t, models.Summary{Right: 1}, models.Summary{Right: 3, Ignores: 1}.Tally())
	assert.Equal(t, models.Summary{Ignores: 1}, models.Summary{Ignores: 2}.Tally())
	assert.Equal(t, models.Summary{Right: 1}, models.Summary{}.Tally())
}
