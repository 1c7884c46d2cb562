package threemf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/models"
)

// ErrMissingPart is returned by the fixers when the archive lacks a part they need
var ErrMissingPart = errors.New("part not found in archive")

var (
	buildStartPattern = regexp.MustCompile(`<(\w+:)?build\b`)
	itemStartPattern  = regexp.MustCompile(`<(\w+:)?item\b[^>]*>`)
	transformPattern  = regexp.MustCompile(`\stransform="[^"]*"`)
	ns1PrefixPattern  = regexp.MustCompile(`\bns1:`)
)

// FixBuildPlateTransform centers the first build item on the plate and drops
// the lowest vertex of the object part onto the plate surface. Returns the
// transform that was written.
func FixBuildPlateTransform(path string, plate [2]float64) (string, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		return "", err
	}

	part := objectPart(DetectObjectID(entries))
	var object models.Model
	ok, err := unmarshalEntry(entries, part, &object)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", part, ErrMissingPart)
	}

	zmin := math.Inf(1)
	for _, obj := range object.Resources.Objects {
		if obj.Mesh == nil {
			continue
		}
		for _, v := range obj.Mesh.Vertices.Vertex {
			zmin = math.Min(zmin, v.Z)
		}
	}
	if math.IsInf(zmin, 1) {
		return "", fmt.Errorf("%s has no vertices", part)
	}

	raw := findEntry(entries, ModelEntry)
	if raw == nil {
		return "", fmt.Errorf("%s: %w", ModelEntry, ErrMissingPart)
	}

	transform := geometry.PlateTransform(plate, zmin)
	updated, err := setFirstItemTransform(string(raw), transform)
	if err != nil {
		return "", err
	}

	if err := Repack(path, map[string][]byte{ModelEntry: []byte(updated)}); err != nil {
		return "", err
	}
	return transform, nil
}

// setFirstItemTransform replaces (or adds) the transform attribute of the
// first item inside the build element, leaving the rest of the document as is
func setFirstItemTransform(doc, transform string) (string, error) {
	build := buildStartPattern.FindStringIndex(doc)
	if build == nil {
		return "", errors.New("no build element in model")
	}
	loc := itemStartPattern.FindStringIndex(doc[build[0]:])
	if loc == nil {
		return "", errors.New("no build item in model")
	}
	start, end := build[0]+loc[0], build[0]+loc[1]
	tag := doc[start:end]

	attr := fmt.Sprintf(` transform="%s"`, transform)
	if transformPattern.MatchString(tag) {
		tag = transformPattern.ReplaceAllLiteralString(tag, attr)
	} else {
		name := itemStartPattern.FindStringSubmatch(tag)[1] + "item"
		tag = strings.Replace(tag, "<"+name, "<"+name+attr, 1)
	}
	return doc[:start] + tag + doc[end:], nil
}

// FixNamespaces repairs the root model part of archives written by slicer
// command line tools: ns1 production prefixes become p, the BambuStudio
// namespace is declared and an ns0 core prefix becomes the default namespace.
// Returns a description of every change.
func FixNamespaces(path string) ([]string, error) {
	raw, ok, err := ReadEntry(path, ModelEntry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", ModelEntry, ErrMissingPart)
	}

	fixed, changes := FixNamespacesText(string(raw))
	if len(changes) == 0 {
		return nil, nil
	}
	if err := Repack(path, map[string][]byte{ModelEntry: []byte(fixed)}); err != nil {
		return nil, err
	}
	return changes, nil
}

// FixNamespacesText applies the namespace fixes to a model document
func FixNamespacesText(doc string) (string, []string) {
	var changes []string

	if strings.Contains(doc, "xmlns:ns1=") && strings.Contains(doc, `requiredextensions="p"`) {
		doc = strings.ReplaceAll(doc,
			`xmlns:ns1="`+models.NamespaceProduction+`"`,
			`xmlns:p="`+models.NamespaceProduction+`"`)
		doc = ns1PrefixPattern.ReplaceAllString(doc, "p:")
		changes = append(changes, "Fixed namespace: ns1: → p:")
	}

	if !strings.Contains(doc, "xmlns:BambuStudio=") && strings.Contains(doc, `requiredextensions="p"`) {
		doc = strings.Replace(doc,
			`requiredextensions="p"`,
			`requiredextensions="p" xmlns:BambuStudio="`+models.NamespaceBambuStudio+`"`, 1)
		changes = append(changes, "Added BambuStudio namespace")
	}

	if strings.Contains(doc, "xmlns:ns0=") && strings.Contains(doc, "<ns0:model") {
		doc = strings.ReplaceAll(doc,
			`xmlns:ns0="`+models.NamespaceCore+`"`,
			`xmlns="`+models.NamespaceCore+`"`)
		doc = strings.ReplaceAll(doc, "<ns0:", "<")
		doc = strings.ReplaceAll(doc, "</ns0:", "</")
		changes = append(changes, "Converted ns0: prefix to default namespace")
	}

	return doc, changes
}
