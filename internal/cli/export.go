package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chazu/ablation/pkg/kernel"
	"github.com/chazu/ablation/pkg/margin"
	"github.com/chazu/ablation/pkg/trajectory"
)

// colorPalette assigns distinct colors to exported parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is the JSON mesh format written by run --out.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// Export is the document written by run --out.
type Export struct {
	Trajectories []trajectory.Trajectory `json:"trajectories"`
	Meshes       []MeshData              `json:"meshes"`
	Summary      *margin.Summary         `json:"summary,omitempty"`
	Coverage     *margin.Coverage        `json:"coverage,omitempty"`
	// Distances holds the signed value per zone surface point, banded when
	// Thresholds is set.
	Distances  []float64 `json:"distances,omitempty"`
	Thresholds []float64 `json:"thresholds,omitempty"`
}

func meshData(meshes []*kernel.Mesh) []MeshData {
	out := make([]MeshData, 0, len(meshes))
	for i, m := range meshes {
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return out
}

func writeExport(path string, doc *Export) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
