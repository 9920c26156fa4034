package mesh

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Named pairs a chunk mesh with its node name in an export.
type Named struct {
	Name string
	Mesh *Mesh
}

// WriteGLB writes one glTF mesh and node per non-empty chunk mesh into a single scene.
// Vertices are already in world space so nodes carry no translation.
func WriteGLB(path string, meshes []Named) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "infinitus meshdump"

	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	doc.Materials = []*gltf.Material{{Name: "voxel", PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaBlend}}

	for _, nm := range meshes {
		if nm.Mesh.Empty() {
			continue
		}
		g := nm.Mesh.Geometry()
		posAccessor := modeler.WritePosition(doc, g.Positions)
		normalAccessor := modeler.WriteNormal(doc, g.Normals)
		colorAccessor := modeler.WriteColor(doc, g.Colors)
		indicesAccessor := modeler.WriteIndices(doc, g.Indices)

		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(posAccessor),
				gltf.NORMAL:   uint32(normalAccessor),
				gltf.COLOR_0:  uint32(colorAccessor),
			},
			Indices:  gltf.Index(uint32(indicesAccessor)),
			Material: gltf.Index(0),
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: nm.Name, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: nm.Name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}
	if len(doc.Meshes) == 0 {
		return fmt.Errorf("glb: no visible faces in %d meshes", len(meshes))
	}
	return gltf.SaveBinary(doc, path)
}
