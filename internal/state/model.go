package state

import (
	"time"

	"localboard/internal/geom"
)

// ObjectType tags the kind of a whiteboard object.
type ObjectType string

const (
	TypePath      ObjectType = "path"
	TypeRectangle ObjectType = "rectangle"
	TypeCircle    ObjectType = "circle"
	TypeLine      ObjectType = "line"
	TypeText      ObjectType = "text"
	TypeImage     ObjectType = "image"
	TypeStamp     ObjectType = "stamp"
)

// Style carries the visual attributes of an object. Erasure copies it onto
// every surviving segment so segments render like the source stroke.
type Style struct {
	StrokeColor string  `json:"strokeColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	BrushType   string  `json:"brushType,omitempty"`
}

// Object is one entity of the shared object table.
//
// For paths Data holds the move/line path string in coordinates relative to
// the anchor (X, Y); for text it holds the text, for images and stamps the
// asset reference.
type Object struct {
	ID        string     `json:"id"`
	Type      ObjectType `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Rotation  float64    `json:"rotation,omitempty"`
	Style     Style      `json:"style"`
	Data      string     `json:"data,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Anchor returns the origin that path data is relative to.
func (o Object) Anchor() geom.Point {
	return geom.Pt(o.X, o.Y)
}

// Points returns the path points of a path object in board coordinates.
// Other object types have no point list.
func (o Object) Points() []geom.Point {
	if o.Type != TypePath {
		return nil
	}
	pts := geom.PathToPoints(o.Data)
	anchor := o.Anchor()
	for i := range pts {
		pts[i] = pts[i].Add(anchor)
	}
	return pts
}

// Bounds returns the board-space bounding box of the object, without the
// stroke width.
func (o Object) Bounds() geom.Bounds {
	if o.Type == TypePath {
		return geom.BoundsOf(geom.PathToPoints(o.Data)).Translate(o.Anchor())
	}
	return geom.BoundsOf([]geom.Point{o.Anchor(), geom.Pt(o.X+o.Width, o.Y+o.Height)})
}

// Erasable reports whether the erasure engine can split the object.
func (o Object) Erasable() bool {
	return o.Type == TypePath
}
