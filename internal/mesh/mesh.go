// Package mesh builds the panorama display geometry: four partial-sphere
// segments, one per captured side face, merged into a single mesh with one
// material group per face.
package mesh

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/lookaround-map/viewer/pkg/core"
)

// FaceLayout is the fixed horizontal placement of a side face on the sphere.
type FaceLayout struct {
	PhiStart  float64 // radians
	PhiLength float64 // radians
	Wide      bool
}

// SideFaces reflects the capture rig: two wide cameras and two narrow ones.
var SideFaces = [core.SideFaceCount]FaceLayout{
	{PhiStart: deg(-90), PhiLength: deg(120), Wide: true},
	{PhiStart: deg(30), PhiLength: deg(60)},
	{PhiStart: deg(90), PhiLength: deg(120), Wide: true},
	{PhiStart: deg(210), PhiLength: deg(60)},
}

// Trim factors crop the physically overlapping edge of each capture.
const (
	WideTrim   = 1 - 1.0/22
	NarrowTrim = 1 - 1.0/12
)

// TrimFactor returns the U scale applied to the face.
func (l FaceLayout) TrimFactor() float64 {
	if l.Wide {
		return WideTrim
	}
	return NarrowTrim
}

// CenterYaw is the camera yaw of the face's horizontal center.
func (l FaceLayout) CenterYaw() float64 {
	return PhiToYaw(l.PhiStart + l.PhiLength/2)
}

// PhiToYaw converts a sphere longitude (phi) into camera yaw.
func PhiToYaw(phi float64) float64 {
	yaw := math.Mod(math.Pi/2-phi, 2*math.Pi)
	if yaw < 0 {
		yaw += 2 * math.Pi
	}
	return yaw
}

func deg(d float64) float64 {
	return d * math.Pi / 180
}

// Face is one built side face and its vertex range inside the merged mesh.
type Face struct {
	Index       core.FaceIndex
	Layout      FaceLayout
	ThetaStart  float64
	ThetaLength float64
	FirstVertex int
	VertexCount int
}

// Group is a contiguous index range drawn with one material.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// Mesh is the merged panorama geometry. It is never mutated after Build.
type Mesh struct {
	Radius    float64
	Positions []r3.Vector
	UVs       []r2.Point
	Indices   []uint32
	Groups    []Group
	Faces     []Face

	// Extent is the first face extent this mesh was built for.
	Extent float64
}

// FaceVertices returns the positions belonging to one side face. Poles and
// unknown faces have none.
func (m *Mesh) FaceVertices(face core.FaceIndex) []r3.Vector {
	if m == nil || !face.IsSide() || int(face) >= len(m.Faces) {
		return nil
	}
	f := m.Faces[face]
	return m.Positions[f.FirstVertex : f.FirstVertex+f.VertexCount]
}

// FaceUVs returns the texture coordinates belonging to one side face.
func (m *Mesh) FaceUVs(face core.FaceIndex) []r2.Point {
	if m == nil || !face.IsSide() || int(face) >= len(m.Faces) {
		return nil
	}
	f := m.Faces[face]
	return m.UVs[f.FirstVertex : f.FirstVertex+f.VertexCount]
}

// FaceAt returns the side face whose angular extent contains the direction.
// Directions over the uncovered poles, or between faces of a flat mesh, have
// no face.
func (m *Mesh) FaceAt(dir r3.Vector) (core.FaceIndex, bool) {
	n := dir.Norm()
	if m == nil || n == 0 {
		return 0, false
	}
	phi := math.Atan2(dir.Z, -dir.X)
	theta := math.Acos(math.Max(-1, math.Min(1, dir.Y/n)))

	for _, f := range m.Faces {
		if theta < f.ThetaStart || theta > f.ThetaStart+f.ThetaLength {
			continue
		}
		offset := math.Mod(phi-f.Layout.PhiStart, 2*math.Pi)
		if offset < 0 {
			offset += 2 * math.Pi
		}
		if offset <= f.Layout.PhiLength {
			return f.Index, true
		}
	}
	return 0, false
}
