package web

import (
	"encoding/json"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-targetlink/pkg/camera"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/events"
	"github.com/teslashibe/go-targetlink/pkg/geometry"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
	"github.com/teslashibe/go-targetlink/pkg/threshold"
)

func newTestServer(t *testing.T) (*Server, *dispatch.Dispatcher, *threshold.Store) {
	t.Helper()
	store := threshold.NewStore(threshold.Default())
	proc := dispatch.ProcessorFunc(func(camera.Frame, dispatch.Mode, threshold.Config) (dispatch.Result, error) {
		return dispatch.Result{}, nil
	})
	disp := dispatch.New(proc, dispatch.DefaultConfig(), store, nil)
	return NewServer(Options{Port: 0}, disp, store, nil), disp, store
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/healthz", "")
	assert.Equal(t, 200, code)
	assert.JSONEq(t, `{"status":"ok","state":"idle"}`, string(body))
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/api/status", "")
	require.Equal(t, 200, code)

	var st Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, "thresholded", st.Mode)
	assert.Equal(t, "Thresholded image", st.ModeLabel)
	assert.Nil(t, st.Link)
}

func TestThresholds_DefaultFullRange(t *testing.T) {
	s, _, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/api/thresholds", "")
	require.Equal(t, 200, code)
	assert.JSONEq(t, `{"h":{"min":0,"max":255},"s":{"min":0,"max":255},"v":{"min":0,"max":255}}`, string(body))
}

func TestThresholds_Put(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     threshold.Config
	}{
		{
			name:     "flat keys",
			body:     `{"h_min":50,"h_max":70}`,
			wantCode: 200,
			want:     threshold.Config{H: threshold.Range{Min: 50, Max: 70}, S: threshold.Full(), V: threshold.Full()},
		},
		{
			name:     "nested partial",
			body:     `{"s":{"min":100}}`,
			wantCode: 200,
			want:     threshold.Config{H: threshold.Full(), S: threshold.Range{Min: 100, Max: 255}, V: threshold.Full()},
		},
		{
			name:     "out of range",
			body:     `{"v_max":300}`,
			wantCode: 400,
			want:     threshold.Default(),
		},
		{
			name:     "min above max",
			body:     `{"h":{"min":200,"max":100}}`,
			wantCode: 400,
			want:     threshold.Default(),
		},
		{
			name:     "unknown key",
			body:     `{"hue":5}`,
			wantCode: 400,
			want:     threshold.Default(),
		},
		{
			name:     "not json",
			body:     `h_min=5`,
			wantCode: 400,
			want:     threshold.Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, store := newTestServer(t)
			code, _ := do(t, s, "PUT", "/api/thresholds", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, store.Snapshot())
		})
	}
}

func TestThresholds_ConcurrentPutsKeepBothChanges(t *testing.T) {
	for round := 0; round < 20; round++ {
		s, _, store := newTestServer(t)

		var wg sync.WaitGroup
		for _, body := range []string{`{"h":{"min":40,"max":80}}`, `{"v_min":90}`} {
			wg.Add(1)
			go func(body string) {
				defer wg.Done()
				req := httptest.NewRequest("PUT", "/api/thresholds", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				resp, err := s.App().Test(req)
				if assert.NoError(t, err) {
					assert.Equal(t, 200, resp.StatusCode)
					resp.Body.Close()
				}
			}(body)
		}
		wg.Wait()

		assert.Equal(t, threshold.Config{
			H: threshold.Range{Min: 40, Max: 80},
			S: threshold.Full(),
			V: threshold.Range{Min: 90, Max: 255},
		}, store.Snapshot(), "round %d", round)
	}
}

func TestThresholds_Reset(t *testing.T) {
	s, _, store := newTestServer(t)
	require.NoError(t, store.Set(threshold.Config{
		H: threshold.Range{Min: 1, Max: 2},
		S: threshold.Full(),
		V: threshold.Full(),
	}))

	code, _ := do(t, s, "POST", "/api/thresholds/reset", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, threshold.Default(), store.Snapshot())
}

func TestModes(t *testing.T) {
	s, _, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/api/modes", "")
	require.Equal(t, 200, code)

	var resp struct {
		Modes   []ModeInfo `json:"modes"`
		Current string     `json:"current"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Modes, 4)
	assert.Equal(t, ModeInfo{Value: 0, Name: "raw", Label: "Raw image"}, resp.Modes[0])
	assert.Equal(t, "thresholded", resp.Current)
}

func TestPutMode(t *testing.T) {
	s, disp, _ := newTestServer(t)

	code, _ := do(t, s, "PUT", "/api/mode", `{"mode":"targets"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, dispatch.ModeTargets, disp.Mode())

	code, _ = do(t, s, "PUT", "/api/mode", `{"mode":3}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, dispatch.ModeTargetsPlus, disp.Mode())

	for _, bad := range []string{`{"mode":7}`, `{"mode":-1}`, `{"mode":1.5}`, `{"mode":"bogus"}`, `{}`, `{"mode":true}`} {
		code, body := do(t, s, "PUT", "/api/mode", bad)
		assert.Equal(t, 400, code, bad)
		assert.Contains(t, string(body), `"current":"targets-plus"`, bad)
		assert.Equal(t, dispatch.ModeTargetsPlus, disp.Mode(), bad)
	}
}

func TestMetrics(t *testing.T) {
	s, disp, _ := newTestServer(t)
	disp.OnFrame(camera.Frame{Width: 1, Height: 1, Pixels: make([]byte, 3)})

	code, body := do(t, s, "GET", "/metrics", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), "targetlink_frames_total 1\n")
	assert.Contains(t, string(body), "targetlink_updates_idle_dropped_total 1\n")
	assert.Contains(t, string(body), "targetlink_link_active 0\n")
}

func TestLink_None(t *testing.T) {
	s, _, _ := newTestServer(t)
	code, body := do(t, s, "GET", "/api/link", "")
	require.Equal(t, 200, code)
	assert.JSONEq(t, `{"kind":"none"}`, string(body))
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, path := range []string{"/ws/status", "/ws/updates", "/ws/camera"} {
		code, _ := do(t, s, "GET", path, "")
		assert.Equal(t, 426, code, path)
	}
}

func TestUpdateView_DropsNonFinite(t *testing.T) {
	u := telemetry.NewVisionUpdate(1000)
	u.Add(geometry.CameraTargetInfo{X: 10, Y: 0.1, Z: 0.2, Theta: 1})
	u.Add(geometry.CameraTargetInfo{X: math.Inf(1), Y: 0, Z: 0, Theta: 1})

	v := newUpdateView(events.FrameEvent{Seq: 3, Mode: "targets", Update: u, Sent: true})
	assert.Equal(t, int64(1000), v.CapturedAtNs)
	require.Len(t, v.Targets, 1)
	assert.Equal(t, 10.0, v.Targets[0].X)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seq":3`)
}

func TestUpdateView_NoUpdate(t *testing.T) {
	v := newUpdateView(events.FrameEvent{Seq: 1})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"targets":[]`)
}

func TestSubscribe(t *testing.T) {
	s, _, _ := newTestServer(t)
	bus := events.New(1, 4)
	require.NoError(t, s.Subscribe(bus))
	assert.True(t, bus.HasSubscribers(events.TopicFrame))
	assert.True(t, bus.HasSubscribers(events.TopicRate))
	assert.True(t, bus.HasSubscribers(events.TopicLink))
}
