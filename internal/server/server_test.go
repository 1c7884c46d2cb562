package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/catalog"
	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/stl"
	"github.com/philipparndt/smithforge/internal/store"
)

const swapText = `Swap Instructions:
Start with Black
At layer #5 (0.40mm) swap to White`

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

func box(max r3.Vec) *mesh.Mesh {
	m := &mesh.Mesh{}
	for i := 0; i < 8; i++ {
		var v r3.Vec
		if i&1 != 0 {
			v.X = max.X
		}
		if i&2 != 0 {
			v.Y = max.Y
		}
		if i&4 != 0 {
			v.Z = max.Z
		}
		m.Vertices = append(m.Vertices, v)
	}
	m.Faces = [][3]int{
		{0, 2, 1}, {1, 2, 3}, {4, 5, 6}, {5, 7, 6},
		{0, 1, 4}, {1, 5, 4}, {2, 6, 3}, {3, 6, 7},
		{0, 4, 2}, {2, 4, 6}, {1, 3, 5}, {3, 7, 5},
	}
	return m
}

func stlBytes(t *testing.T, m *mesh.Mesh) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.stl")
	require.NoError(t, stl.NewWriter().WriteBinary(m.ToSTL(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

type fixture struct {
	srv   *Server
	cfg   models.ServerConfig
	store *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := models.ServerConfig{
		InputsDir:  filepath.Join(dir, "inputs"),
		BasesDir:   filepath.Join(dir, "bases"),
		OutputsDir: filepath.Join(dir, "outputs"),
	}

	require.NoError(t, os.MkdirAll(cfg.BasesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.BasesDir, "plate.stl"), stlBytes(t, box(r3.Vec{X: 40, Y: 20, Z: 5})), 0o644))

	cat, err := catalog.New(cfg.BasesDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	st, err := store.Open(filepath.Join(dir, "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := New(Options{
		Config:  cfg,
		Engine:  &engine.AssembleEngine{},
		Catalog: cat,
		Store:   st,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &fixture{srv: srv, cfg: cfg, store: st}
}

type upload struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexPrefill(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/?output_name=mine.3mf&rotate_base=90&scaledown=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="mine.3mf"`)
	assert.Contains(t, body, `value="90"`)
	assert.Contains(t, body, "plate.stl")
	assert.Contains(t, body, "checked")
}

func TestIndexUnknownPath(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunWithDefaultBase(t *testing.T) {
	f := newFixture(t)
	overlay := stlBytes(t, box(r3.Vec{X: 10, Y: 10, Z: 2}))

	req := multipartRequest(t, "/run-smithforge", map[string]string{
		"default_base":       "plate.stl",
		"inject_colors_text": swapText,
	}, upload{"hueforge_file", "overlay.stl", overlay})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	name := "combined_plate_overlay_20240309_140506.3mf"
	assert.Contains(t, rec.Body.String(), "/outputs/"+name)
	assert.FileExists(t, filepath.Join(f.cfg.OutputsDir, name))
	assert.FileExists(t, filepath.Join(f.cfg.InputsDir, "overlay.stl"))

	jobs, err := f.store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, store.StatusSucceeded, jobs[0].Status)
	assert.Equal(t, name, jobs[0].Output)
	assert.Len(t, jobs[0].HueforgeDigest, 16)

	download := f.do(httptest.NewRequest(http.MethodGet, "/outputs/"+name, nil))
	assert.Equal(t, http.StatusOK, download.Code)
}

func TestRunUploadedBase(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/run-smithforge", map[string]string{"output_name": "custom"},
		upload{"hueforge_file", "overlay.stl", stlBytes(t, box(r3.Vec{X: 10, Y: 10, Z: 2}))},
		upload{"base_file", "round.stl", stlBytes(t, box(r3.Vec{X: 30, Y: 30, Z: 4}))},
	)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, filepath.Join(f.cfg.OutputsDir, "custom.3mf"))
	assert.FileExists(t, filepath.Join(f.cfg.BasesDir, "round.stl"))
	assert.True(t, f.srv.catalog.Has("round.stl"))
}

func TestRunUnusableOutputName(t *testing.T) {
	for _, output := range []string{"../", "..", "  ", "/"} {
		t.Run(output, func(t *testing.T) {
			f := newFixture(t)
			req := multipartRequest(t, "/run-smithforge", map[string]string{
				"default_base": "plate.stl",
				"output_name":  output,
			}, upload{"hueforge_file", "overlay.stl", stlBytes(t, box(r3.Vec{X: 10, Y: 10, Z: 2}))})
			rec := f.do(req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			name := "combined_plate_overlay_20240309_140506.3mf"
			assert.FileExists(t, filepath.Join(f.cfg.OutputsDir, name))
			assert.NoFileExists(t, filepath.Join(f.cfg.OutputsDir, ".3mf"))
		})
	}
}

func TestRunRejected(t *testing.T) {
	overlay := upload{"hueforge_file", "overlay.stl", nil}

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		status int
		want   string
	}{
		{"no base", nil, []upload{overlay}, http.StatusBadRequest, errNoBase},
		{"unknown base", map[string]string{"default_base": "missing.stl"}, []upload{overlay}, http.StatusNotFound, errBaseNotFound},
		{"no hueforge", map[string]string{"default_base": "plate.stl"}, nil, http.StatusBadRequest, errNoHueforge},
		{"bad number", map[string]string{"default_base": "plate.stl", "xshift": "left"}, []upload{overlay}, http.StatusBadRequest, "xshift must be a number"},
		{"bad format", map[string]string{"default_base": "plate.stl", "output_format": "obj"}, []upload{overlay}, http.StatusBadRequest, "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(multipartRequest(t, "/run-smithforge", tt.fields, tt.files...))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRunFailureRecorded(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/run-smithforge", map[string]string{
		"default_base":       "plate.stl",
		"inject_colors_text": "nothing useful here",
	}, upload{"hueforge_file", "overlay.stl", stlBytes(t, box(r3.Vec{X: 10, Y: 10, Z: 2}))})
	rec := f.do(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	jobs, err := f.store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, store.StatusFailed, jobs[0].Status)
	assert.NotEmpty(t, jobs[0].Error)
}

func TestAPIBases(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/bases", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"plate.stl"}, body["bases"])
}

func TestAPISwapInstructions(t *testing.T) {
	f := newFixture(t)

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/swap-instructions", strings.NewReader(`{"text":"`+strings.ReplaceAll(swapText, "\n", `\n`)+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Layers []struct {
				TopZ  float64 `json:"top_z"`
				Color string  `json:"color"`
			} `json:"layers"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
		require.Len(t, data.Layers, 1)
		assert.InDelta(t, 0.4, data.Layers[0].TopZ, 1e-9)
	})

	t.Run("no swaps", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/swap-instructions", strings.NewReader("text=hello"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := f.do(req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/swap-instructions", strings.NewReader("text="))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := f.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPIPreview(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/preview", map[string]string{"default_base": "plate.stl", "zshift": "1"},
		upload{"hueforge_file", "overlay.stl", stlBytes(t, box(r3.Vec{X: 10, Y: 10, Z: 2}))})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "model/gltf-binary", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("glTF"), rec.Body.Bytes()[:4])
	assert.NotEmpty(t, rec.Header().Get("X-Smithforge-Zoffset"))
}

func TestAPIJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.store.Create(ctx, store.Job{Hueforge: "a.stl", Base: "b.stl", Output: "c.3mf"})
	require.NoError(t, err)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string][]store.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list["jobs"], 1)
	assert.Equal(t, id, list["jobs"][0].ID)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job store.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.Equal(t, "a.stl", job.Hueforge)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/jobs?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "combined_plate_hf_20240309_140506.3mf", OutputName("bases/plate.stl", "hf.3mf", fixedNow))
	assert.Equal(t, "result.3mf", Ensure3MF("result"))
	assert.Equal(t, "result.3MF", Ensure3MF("result.3MF"))
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"plate.stl":           "plate.stl",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\hf.3mf`: "hf.3mf",
		"..":                  "",
		"":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeName(in), in)
	}
}
