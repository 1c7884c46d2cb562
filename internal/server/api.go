package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/philipparndt/smithforge/internal/forge"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/store"
)

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, apiError{Error: err.Error()})
}

func (s *Server) handleBases(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"bases": s.catalog.List()})
}

// handleLayers returns the layer overview of an uploaded 3MF, moved by zshift
func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	zshift := 0.0
	if v := r.FormValue("zshift"); v != "" {
		if zshift, err = strconv.ParseFloat(v, 64); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("zshift must be a number, got %q", v))
			return
		}
	}

	tmp, err := os.CreateTemp("", "layers-*"+filepath.Ext(safeName(header.Filename)))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	set := layers.ParseLayers(tmp.Name())
	if zshift != 0 {
		set.Layers = layers.AdjustForZShift(set.Layers, zshift)
		set.TotalHeight += zshift
	}
	s.writeJSON(w, http.StatusOK, set)
}

// handleSwapInstructions parses swap text given as form field "text" or a JSON body
func (s *Server) handleSwapInstructions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
			return
		}
		text = body.Text
	default:
		text = r.FormValue("text")
	}

	if strings.TrimSpace(text) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("no swap instruction text provided"))
		return
	}

	data, err := layers.ParseSwapInstructions(text)
	if errors.Is(err, layers.ErrNoSwaps) {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// handlePreview places the uploaded overlay on the base and returns both as GLB
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := parseParams(r.MultipartForm.Value)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	work, err := os.MkdirTemp("", "preview-*")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(work)

	hueforge, header, err := r.FormFile("hueforge_file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("no HueForge file provided"))
		return
	}
	defer hueforge.Close()
	opts.Hueforge = filepath.Join(work, "hueforge"+filepath.Ext(safeName(header.Filename)))
	if _, err := saveUpload(hueforge, opts.Hueforge); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if base, header, err := r.FormFile("base_file"); err == nil {
		defer base.Close()
		opts.Base = filepath.Join(work, "base"+filepath.Ext(safeName(header.Filename)))
		if _, err := saveUpload(base, opts.Base); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else if name := safeName(r.FormValue("default_base")); name != "" && s.catalog.Has(name) {
		opts.Base = s.catalog.Path(name)
	} else {
		s.writeError(w, http.StatusBadRequest, errors.New("no base model provided"))
		return
	}

	data, placement, err := forge.PreviewGLB(r.Context(), opts, s.forge)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("X-Smithforge-Scale", strconv.FormatFloat(placement.Scale, 'f', 4, 64))
	w.Header().Set("X-Smithforge-Zoffset", strconv.FormatFloat(placement.ZOffset, 'f', 4, 64))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusOK, map[string][]store.Job{"jobs": {}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be an integer, got %q", v))
			return
		}
		limit = n
	}

	jobs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]store.Job{"jobs": jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	job, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}
