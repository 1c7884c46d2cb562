package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const (
	headerSize   = 80
	triangleSize = 50
)

// Vector3 represents a 3D vector
type Vector3 struct {
	X, Y, Z float32
}

// Triangle represents a triangle in 3D space
type Triangle struct {
	Normal     Vector3
	V1, V2, V3 Vector3
}

// Mesh represents an STL mesh
type Mesh struct {
	Name      string
	Triangles []Triangle
}

// Parser parses STL files
type Parser struct{}

// NewParser creates a new STL parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads an STL file and returns the mesh data
func (p *Parser) Parse(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}

	// Read the header and triangle count to detect the format
	header := make([]byte, headerSize+4)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	header = header[:n]

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking: %w", err)
	}

	if isASCII(header, info.Size()) {
		return p.parseASCII(file, filename)
	}
	return p.parseBinary(file, filename)
}

// isASCII reports whether the file looks like an ASCII STL. Some exporters
// write binary files whose header starts with "solid", so a header whose
// triangle count matches the file size is treated as binary.
func isASCII(header []byte, size int64) bool {
	if !strings.HasPrefix(string(header), "solid") {
		return false
	}
	if len(header) < headerSize+4 {
		return true
	}
	count := binary.LittleEndian.Uint32(header[headerSize:])
	return int64(headerSize+4)+int64(count)*triangleSize != size
}

// parseASCII parses an ASCII STL file
func (p *Parser) parseASCII(reader io.Reader, filename string) (*Mesh, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	mesh := &Mesh{
		Name:      filepath.Base(filename),
		Triangles: []Triangle{},
	}

	var currentTriangle Triangle
	var vertexCount int

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				mesh.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if len(fields) >= 5 && fields[1] == "normal" {
				fmt.Sscanf(strings.Join(fields[2:], " "), "%f %f %f",
					&currentTriangle.Normal.X, &currentTriangle.Normal.Y, &currentTriangle.Normal.Z)
			}
			vertexCount = 0
		case "vertex":
			if len(fields) >= 4 {
				var v Vector3
				if _, err := fmt.Sscanf(strings.Join(fields[1:4], " "), "%f %f %f", &v.X, &v.Y, &v.Z); err != nil {
					return nil, fmt.Errorf("invalid vertex %q: %w", strings.Join(fields[1:], " "), err)
				}
				switch vertexCount {
				case 0:
					currentTriangle.V1 = v
				case 1:
					currentTriangle.V2 = v
				case 2:
					currentTriangle.V3 = v
				}
				vertexCount++
			}
		case "endfacet":
			if vertexCount != 3 {
				return nil, fmt.Errorf("facet %d has %d vertices", len(mesh.Triangles), vertexCount)
			}
			mesh.Triangles = append(mesh.Triangles, currentTriangle)
			currentTriangle = Triangle{}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return mesh, nil
}

// parseBinary parses a binary STL file
func (p *Parser) parseBinary(reader io.Reader, filename string) (*Mesh, error) {
	mesh := &Mesh{
		Name: filepath.Base(filename),
	}
	br := bufio.NewReader(reader)

	// Read 80-byte header
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	// Read triangle count
	var triangleCount uint32
	if err := binary.Read(br, binary.LittleEndian, &triangleCount); err != nil {
		return nil, fmt.Errorf("error reading triangle count: %w", err)
	}

	// Read triangles: normal, three vertices, attribute byte count
	mesh.Triangles = make([]Triangle, triangleCount)
	record := make([]byte, triangleSize)
	for i := uint32(0); i < triangleCount; i++ {
		if _, err := io.ReadFull(br, record); err != nil {
			return nil, fmt.Errorf("error reading triangle %d: %w", i, err)
		}
		mesh.Triangles[i] = Triangle{
			Normal: readVector(record[0:]),
			V1:     readVector(record[12:]),
			V2:     readVector(record[24:]),
			V3:     readVector(record[36:]),
		}
	}

	return mesh, nil
}

func readVector(b []byte) Vector3 {
	return Vector3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func putVector(b []byte, v Vector3) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

// Writer writes STL files
type Writer struct{}

// NewWriter creates a new STL writer
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBinary writes the mesh as a binary STL file
func (w *Writer) WriteBinary(mesh *Mesh, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := w.EncodeBinary(bw, mesh); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error writing %s: %w", filename, err)
	}
	return file.Close()
}

// EncodeBinary writes the binary STL representation of the mesh to out
func (w *Writer) EncodeBinary(out io.Writer, mesh *Mesh) error {
	header := make([]byte, headerSize+4)
	copy(header, "binary STL "+mesh.Name)
	binary.LittleEndian.PutUint32(header[headerSize:], uint32(len(mesh.Triangles)))
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	record := make([]byte, triangleSize)
	for i, tri := range mesh.Triangles {
		putVector(record[0:], tri.Normal)
		putVector(record[12:], tri.V1)
		putVector(record[24:], tri.V2)
		putVector(record[36:], tri.V3)
		record[48], record[49] = 0, 0
		if _, err := out.Write(record); err != nil {
			return fmt.Errorf("error writing triangle %d: %w", i, err)
		}
	}
	return nil
}

// WriteASCII writes the mesh as an ASCII STL file
func (w *Writer) WriteASCII(mesh *Mesh, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	name := strings.ReplaceAll(mesh.Name, " ", "_")
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, tri := range mesh.Triangles {
		fmt.Fprintf(bw, "  facet normal %e %e %e\n", tri.Normal.X, tri.Normal.Y, tri.Normal.Z)
		fmt.Fprintf(bw, "    outer loop\n")
		for _, v := range []Vector3{tri.V1, tri.V2, tri.V3} {
			fmt.Fprintf(bw, "      vertex %e %e %e\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error writing %s: %w", filename, err)
	}
	return file.Close()
}
