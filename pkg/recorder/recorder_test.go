package recorder

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

func openTest(t *testing.T, path string) *Recorder {
	t.Helper()
	r, err := Open(path, RunInfo{Source: "test", Intrinsics: geometry.DefaultIntrinsics()})
	require.NoError(t, err)
	return r
}

func frameEvent(seq uint64, ms ...geometry.RawMeasurement) events.FrameEvent {
	in := geometry.DefaultIntrinsics()
	u := telemetry.NewVisionUpdate(int64(seq) * 1000)
	for _, info := range geometry.TransformAll(ms, in, nil) {
		u.Add(info)
	}
	return events.FrameEvent{Seq: seq, Mode: "targets", Update: u, Measurements: ms, Sent: true}
}

func TestRecordAndRead(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "obs.db"))
	defer r.Close()

	m1 := geometry.RawMeasurement{CentroidX: 319.5, CentroidY: 239.5, Width: 100, Height: 40, LeftToRightRatio: 1}
	m2 := geometry.RawMeasurement{CentroidX: 100, CentroidY: 50, Width: 50, Height: 20, LeftToRightRatio: 0.8}
	require.NoError(t, r.Record(frameEvent(1, m1, m2)))
	require.NoError(t, r.Record(frameEvent(2)))

	n, err := r.FrameCount(r.RunID())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	obs, err := r.Observations(r.RunID())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, uint64(1), obs[0].Seq)
	assert.Equal(t, 0, obs[0].Index)
	assert.Equal(t, m1, obs[0].Measurement)
	assert.InDelta(t, 63.29113924, obs[0].Estimate.X, 1e-9)
	assert.InDelta(t, 0, obs[0].Estimate.Y, 1e-12)

	assert.Equal(t, 1, obs[1].Index)
	assert.Equal(t, m2, obs[1].Measurement)

	st := r.Stats()
	assert.Equal(t, uint64(2), st.Frames)
	assert.Equal(t, uint64(2), st.Targets)
	assert.Zero(t, st.Errors)
}

func TestObservations_OrderedBySeq(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "obs.db"))
	defer r.Close()

	m := geometry.RawMeasurement{CentroidX: 320, CentroidY: 240, Width: 80, Height: 30, LeftToRightRatio: 1}
	// Bus workers can deliver frames out of order.
	for _, seq := range []uint64{3, 1, 2} {
		require.NoError(t, r.Record(frameEvent(seq, m, m)))
	}

	obs, err := r.Observations(r.RunID())
	require.NoError(t, err)
	require.Len(t, obs, 6)

	type key struct {
		seq uint64
		idx int
	}
	var got []key
	for _, o := range obs {
		got = append(got, key{o.Seq, o.Index})
	}
	assert.Equal(t, []key{{1, 0}, {1, 1}, {2, 0}, {2, 1}, {3, 0}, {3, 1}}, got)
}

func TestRecord_NaNComesBackAsNaN(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "obs.db"))
	defer r.Close()

	m := geometry.RawMeasurement{CentroidX: math.NaN(), CentroidY: 10, Width: 20, Height: 10, LeftToRightRatio: 1}
	require.NoError(t, r.Record(frameEvent(1, m)))

	obs, err := r.Observations(r.RunID())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.True(t, math.IsNaN(obs[0].Measurement.CentroidX))
	assert.True(t, math.IsNaN(obs[0].Estimate.Y))
	assert.Equal(t, 10.0, obs[0].Measurement.CentroidY)
}

func TestRecord_AfterClose(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "obs.db"))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.ErrorIs(t, r.Record(frameEvent(1)), ErrClosed)
}

func TestRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.db")
	first := openTest(t, path)
	firstID := first.RunID()
	require.NoError(t, first.Close())

	second := openTest(t, path)
	defer second.Close()
	assert.NotEqual(t, firstID, second.RunID())

	runs, err := second.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]Run{}
	for _, run := range runs {
		byID[run.ID] = run
	}
	assert.True(t, byID[firstID].Ended)
	assert.False(t, byID[second.RunID()].Ended)
	assert.Equal(t, "test", byID[firstID].Source)
}

func TestSubscribe(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "obs.db"))
	defer r.Close()

	bus := events.New(1, 8)
	bus.Start()
	defer bus.Stop()
	require.NoError(t, r.Subscribe(bus))

	m := geometry.RawMeasurement{CentroidX: 200, CentroidY: 100, Width: 60, Height: 25, LeftToRightRatio: 1}
	require.True(t, bus.PublishAsync(events.TopicFrame, frameEvent(7, m)))

	assert.Eventually(t, func() bool { return r.Stats().Frames == 1 }, 2*time.Second, 5*time.Millisecond)
	obs, err := r.Observations(r.RunID())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, uint64(7), obs[0].Seq)
}
