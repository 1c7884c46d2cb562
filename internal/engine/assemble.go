package engine

import (
	"context"
	"fmt"

	"github.com/philipparndt/smithforge/internal/mesh"
)

// AssembleEngine merges the meshes without boolean operations. The result is
// a multi-shell mesh: good enough for previews and slicers that accept
// overlapping parts, but the overlay is not clipped to the base outline.
type AssembleEngine struct{}

func (e *AssembleEngine) Name() string {
	return KindAssemble
}

// Check always succeeds, the engine has no external dependencies
func (e *AssembleEngine) Check(ctx context.Context) error {
	return nil
}

func (e *AssembleEngine) Combine(ctx context.Context, job Job) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := []string{
		"Assemble engine: merging base and overlay without boolean union",
		"Overlay is not clipped to the base outline",
	}
	if job.Fill != nil {
		log = append(log, "Gap filling needs the python engine, skipped")
	}

	m := mesh.Concat(job.Base.Name, job.Base, job.Overlay)
	log = append(log, fmt.Sprintf("Result: %d vertices, %d faces", len(m.Vertices), m.FaceCount()))
	return &Result{Mesh: m, Log: log}, nil
}
