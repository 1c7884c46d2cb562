package threemf

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/flate"
)

// Well known archive entries
const (
	ModelEntry             = "3D/3dmodel.model"
	ModelRelsEntry         = "3D/_rels/3dmodel.model.rels"
	ObjectsDir             = "3D/Objects/"
	ContentTypesEntry      = "[Content_Types].xml"
	RootRelsEntry          = "_rels/.rels"
	ModelSettingsEntry     = "Metadata/model_settings.config"
	ModelSettingsRelsEntry = "Metadata/_rels/model_settings.config.rels"
	ProjectSettingsEntry   = "Metadata/project_settings.config"
	LayerConfigRangesEntry = "Metadata/layer_config_ranges.xml"
	CustomGCodeEntry       = "Metadata/custom_gcode_per_layer.xml"
)

// ErrNoModel is returned when an archive has no 3D/3dmodel.model part
var ErrNoModel = errors.New(ModelEntry + " not found in archive")

// Entry is a named archive part
type Entry struct {
	Name string
	Data []byte
}

func openArchive(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening ZIP: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	return zr, nil
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return zw
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", f.Name, err)
	}
	return data, nil
}

// ReadEntries returns all parts of the archive in archive order
func ReadEntries(path string) ([]Entry, error) {
	zr, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: f.Name, Data: data})
	}
	return entries, nil
}

// ReadEntry returns a single part of the archive. The boolean is false when
// the part does not exist.
func ReadEntry(path, name string) ([]byte, bool, error) {
	zr, err := openArchive(path)
	if err != nil {
		return nil, false, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == name {
			data, err := readFile(f)
			return data, true, err
		}
	}
	return nil, false, nil
}

// List returns the names of all parts in the archive
func List(path string) ([]string, error) {
	zr, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// WriteArchive writes the entries into a new deflated archive
func WriteArchive(path string, entries []Entry) error {
	return atomicWrite(path, func(w io.Writer) error {
		zw := newZipWriter(w)
		for _, e := range entries {
			dst, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
			if err != nil {
				return fmt.Errorf("error creating ZIP entry %s: %w", e.Name, err)
			}
			if _, err := dst.Write(e.Data); err != nil {
				return fmt.Errorf("error writing ZIP entry %s: %w", e.Name, err)
			}
		}
		return zw.Close()
	})
}

// Repack rewrites the archive with the given parts replaced or added. Parts
// keep their position, new parts are appended in name order.
func Repack(path string, changes map[string][]byte) error {
	entries, err := ReadEntries(path)
	if err != nil {
		return err
	}

	pending := make(map[string][]byte, len(changes))
	for k, v := range changes {
		pending[k] = v
	}

	for i, e := range entries {
		if data, ok := pending[e.Name]; ok {
			entries[i].Data = data
			delete(pending, e.Name)
		}
	}

	added := make([]string, 0, len(pending))
	for name := range pending {
		added = append(added, name)
	}
	sort.Strings(added)
	for _, name := range added {
		entries = append(entries, Entry{Name: name, Data: pending[name]})
	}

	return WriteArchive(path, entries)
}

// atomicWrite writes into a temporary file next to path and renames it into place
func atomicWrite(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}
