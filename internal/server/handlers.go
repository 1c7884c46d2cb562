package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/forge"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/store"
	"github.com/philipparndt/smithforge/internal/threemf"
)

// Error page titles
const (
	errNoBase        = "No base model provided"
	errBaseNotFound  = "Selected base model not found"
	errNoHueforge    = "No HueForge file provided"
	errInvalidParams = "Invalid parameters"
)

type indexPage struct {
	HueforgeFile string
	BaseFile     string
	OutputName   string
	RotateBase   string
	ForceScale   string
	ScaleDown    bool
	XShift       string
	YShift       string
	ZShift       string
	DefaultBases []string
}

type resultPage struct {
	JobID        string
	LogLines     []string
	Warnings     []string
	DownloadURL  string
	HueforgeFile string
	BaseFile     string
	OutputName   string
	RotateBase   float64
	ForceScale   string
	ScaleDown    bool
	XShift       string
	YShift       string
	ZShift       string
	Scale        float64
	Faces        int
	Format       string
}

type errorPage struct {
	Error string
	Log   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rotate := q.Get("rotate_base")
	if rotate == "" {
		rotate = "0"
	}
	s.render(w, http.StatusOK, "index.html", indexPage{
		HueforgeFile: q.Get("hueforge_file"),
		BaseFile:     q.Get("base_file"),
		OutputName:   q.Get("output_name"),
		RotateBase:   rotate,
		ForceScale:   q.Get("force_scale"),
		ScaleDown:    parseBool(q.Get("scaledown")),
		XShift:       q.Get("xshift"),
		YShift:       q.Get("yshift"),
		ZShift:       q.Get("zshift"),
		DefaultBases: s.catalog.List(),
	})
}

// runRequest is the parsed upload form
type runRequest struct {
	hueforgeName string
	baseName     string
	output       string
	opts         forge.Options
	forceScale   string
	shifts       [3]string
	job          store.Job
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.renderError(w, http.StatusBadRequest, errInvalidParams, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, status, title, detail := s.parseRun(r)
	if title != "" {
		s.renderError(w, status, title, detail)
		return
	}

	if err := s.jobs.Acquire(r.Context(), 1); err != nil {
		s.renderError(w, http.StatusServiceUnavailable, engine.MessageGeneric, err.Error())
		return
	}
	defer s.jobs.Release(1)

	jobID := s.startJob(r, req)
	logger := s.logger.With(zap.String("job_id", jobID), zap.String("output", req.output))
	reporter := forge.NewCaptureReporter(logger)

	start := time.Now()
	summary, err := s.runForge(r, req.opts, reporter)
	duration := time.Since(start)

	var lines []string
	if summary != nil {
		lines = summary.Log
	}

	if err != nil {
		message := errorMessage(err)
		logger.Warn("forge failed", zap.Error(err), zap.Duration("duration", duration))
		s.finishJob(r, jobID, store.StatusFailed, "", err.Error(), lines, duration)
		s.renderError(w, http.StatusInternalServerError, message, strings.Join(append(lines, err.Error()), "\n"))
		return
	}

	logger.Info("forge finished", zap.Duration("duration", duration), zap.Int("faces", summary.Faces))
	s.finishJob(r, jobID, store.StatusSucceeded, req.output, "", lines, duration)

	s.render(w, http.StatusOK, "result.html", resultPage{
		JobID:        jobID,
		LogLines:     engine.CompactLog(strings.Join(lines, "\n")),
		Warnings:     summary.Warnings,
		DownloadURL:  "/outputs/" + url.PathEscape(req.output),
		HueforgeFile: req.hueforgeName,
		BaseFile:     req.baseName,
		OutputName:   req.output,
		RotateBase:   req.opts.RotateBase,
		ForceScale:   req.forceScale,
		ScaleDown:    req.opts.ScaleDown,
		XShift:       req.shifts[0],
		YShift:       req.shifts[1],
		ZShift:       req.shifts[2],
		Scale:        summary.Scale,
		Faces:        summary.Faces,
		Format:       string(summary.Format),
	})
}

func (s *Server) runForge(r *http.Request, opts forge.Options, reporter forge.Reporter) (*forge.Summary, error) {
	plan, err := forge.NewPlanner(s.engine, s.forge, reporter).CreatePlan(opts)
	if err != nil {
		return nil, err
	}
	return plan.Execute(r.Context())
}

// parseRun saves the uploads and builds the forge options. A non-empty title
// means the request was rejected.
func (s *Server) parseRun(r *http.Request) (req runRequest, status int, title, detail string) {
	params, err := parseParams(r.MultipartForm.Value)
	if err != nil {
		return req, http.StatusBadRequest, errInvalidParams, err.Error()
	}
	req.forceScale = r.FormValue("force_scale")
	req.shifts = [3]string{r.FormValue("xshift"), r.FormValue("yshift"), r.FormValue("zshift")}

	hueforge, hueforgeHeader, err := r.FormFile("hueforge_file")
	if err != nil || safeName(hueforgeHeader.Filename) == "" {
		return req, http.StatusBadRequest, errNoHueforge, "Upload the HueForge 3MF or STL export"
	}
	defer hueforge.Close()
	req.hueforgeName = safeName(hueforgeHeader.Filename)

	basePath := ""
	if base, header, err := r.FormFile("base_file"); err == nil && safeName(header.Filename) != "" {
		defer base.Close()
		req.baseName = safeName(header.Filename)
		basePath = filepath.Join(s.catalog.Dir(), req.baseName)
		digest, err := saveUpload(base, basePath)
		if err != nil {
			return req, http.StatusInternalServerError, engine.MessageGeneric, err.Error()
		}
		req.job.BaseDigest = digest
		if err := s.catalog.Refresh(); err != nil {
			s.logger.Warn("catalog refresh failed", zap.Error(err))
		}
	} else if name := safeName(r.FormValue("default_base")); name != "" {
		req.baseName = name
		basePath = s.catalog.Path(name)
		if _, err := os.Stat(basePath); err != nil {
			return req, http.StatusNotFound, errBaseNotFound, "File not found: " + basePath
		}
	} else {
		return req, http.StatusBadRequest, errNoBase, "Either upload a base file or select a default base model"
	}

	if name := safeName(strings.TrimSpace(r.FormValue("output_name"))); name != "" {
		req.output = Ensure3MF(name)
	} else {
		req.output = OutputName(req.baseName, req.hueforgeName, s.now())
	}

	hueforgePath := filepath.Join(s.cfg.InputsDir, req.hueforgeName)
	digest, err := saveUpload(hueforge, hueforgePath)
	if err != nil {
		return req, http.StatusInternalServerError, engine.MessageGeneric, err.Error()
	}
	req.job.HueforgeDigest = digest

	params.Hueforge = hueforgePath
	params.Base = basePath
	params.Output = filepath.Join(s.cfg.OutputsDir, req.output)
	req.opts = params

	req.job.Hueforge = req.hueforgeName
	req.job.Base = req.baseName
	req.job.Output = req.output
	req.job.Format = string(params.Format)
	return req, http.StatusOK, "", ""
}

// parseParams reads the numeric and boolean form fields
func parseParams(values map[string][]string) (forge.Options, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var opts forge.Options
	floats := []struct {
		key string
		dst *float64
	}{
		{"rotate_base", &opts.RotateBase},
		{"force_scale", &opts.Scale},
		{"xshift", &opts.XShift},
		{"yshift", &opts.YShift},
		{"zshift", &opts.ZShift},
	}
	for _, f := range floats {
		v := get(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%s must be a number, got %q", f.key, v)
		}
		*f.dst = n
	}

	opts.ScaleDown = parseBool(get("scaledown"))
	opts.PreserveColors = parseBool(get("preserve_colors"))
	opts.AutoRepair = parseBool(get("auto_repair"))
	opts.FillGaps = parseBool(get("fill_gaps"))
	opts.InjectColorsContent = get("inject_colors_text")

	format, err := threemf.ParseFormat(get("output_format"))
	if err != nil {
		return opts, err
	}
	opts.Format = format
	return opts, nil
}

func (s *Server) startJob(r *http.Request, req runRequest) string {
	if s.store == nil {
		return ""
	}
	job := req.job
	if data, err := json.Marshal(req.opts); err == nil {
		job.Options = string(data)
	}
	id, err := s.store.Create(r.Context(), job)
	if err != nil {
		s.logger.Warn("failed to record job", zap.Error(err))
		return ""
	}
	return id
}

func (s *Server) finishJob(r *http.Request, id string, status store.Status, output, errMsg string, log []string, d time.Duration) {
	if s.store == nil || id == "" {
		return
	}
	if err := s.store.Finish(r.Context(), id, status, output, errMsg, log, d); err != nil {
		s.logger.Warn("failed to record job result", zap.String("job_id", id), zap.Error(err))
	}
}

// errorMessage classifies a failed run for the error page
func errorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotWatertight):
		return engine.MessageNotWatertight
	case errors.Is(err, forge.ErrConflictingColorSources),
		errors.Is(err, engine.ErrEmptyClip),
		errors.Is(err, engine.ErrEmptyHull),
		errors.Is(err, engine.ErrEngineUnavailable),
		errors.Is(err, layers.ErrNoSwaps):
		return unwrapMessage(err)
	}
	return engine.MessageGeneric
}

// unwrapMessage returns the message of the innermost sentinel, without step prefixes
func unwrapMessage(err error) string {
	for _, sentinel := range []error{
		forge.ErrConflictingColorSources, engine.ErrEmptyClip, engine.ErrEmptyHull,
		engine.ErrEngineUnavailable, layers.ErrNoSwaps,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// OutputName is the default result name: combined_{base}_{hueforge}_{timestamp}.3mf
func OutputName(base, hueforge string, now time.Time) string {
	stem := func(name string) string {
		name = filepath.Base(name)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return fmt.Sprintf("combined_%s_%s_%s.3mf", stem(base), stem(hueforge), now.Format("20060102_150405"))
}

// Ensure3MF appends .3mf unless the name already ends in it
func Ensure3MF(name string) string {
	if !strings.HasSuffix(strings.ToLower(name), ".3mf") {
		return name + ".3mf"
	}
	return name
}

// safeName reduces an uploaded file name to its base name
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// saveUpload writes src to path and returns the xxhash digest of the content
func saveUpload(src multipart.File, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	defer f.Close()

	digest := xxhash.New()
	if _, err := io.Copy(io.MultiWriter(f, digest), src); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), f.Close()
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, title, log string) {
	s.render(w, status, "error.html", errorPage{Error: title, Log: log})
}
