// Package export renders the object table to a printable document.
package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"localboard/internal/geom"
	"localboard/internal/logger"
	"localboard/internal/state"
)

var log = logger.Tag("export")

// Options controls the page layout.
type Options struct {
	Title string
	// Margin around the drawing in millimetres.
	Margin float64
}

// DefaultOptions returns an untitled layout with a 10mm margin.
func DefaultOptions() Options {
	return Options{Margin: 10}
}

// page maps board coordinates onto the PDF page.
type page struct {
	origin geom.Point
	scale  float64
	margin float64
}

func (pg page) pt(p geom.Point) (float64, float64) {
	return pg.margin + (p.X-pg.origin.X)*pg.scale, pg.margin + (p.Y-pg.origin.Y)*pg.scale
}

func (pg page) size(v float64) float64 {
	return v * pg.scale
}

// ExportPDF writes objs to a single-page PDF file at path.
func ExportPDF(path string, objs []state.Object, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePDF(f, objs, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePDF renders objs, in the order given, scaled to fit one A4 page.
func WritePDF(w io.Writer, objs []state.Object, opts Options) error {
	bounds := geom.EmptyBounds()
	for _, o := range objs {
		bounds = bounds.Union(o.Bounds().Inflate(o.Style.StrokeWidth / 2))
	}

	orientation := "P"
	if !bounds.IsEmpty() && bounds.Width() > bounds.Height() {
		orientation = "L"
	}
	p := gofpdf.New(orientation, "mm", "A4", "")
	if opts.Title != "" {
		p.SetTitle(opts.Title, true)
	}
	p.SetCreator("LocalBoard", true)
	p.AddPage()

	pw, ph := p.GetPageSize()
	pg := page{scale: 1, margin: opts.Margin}
	if !bounds.IsEmpty() {
		pg.origin = geom.Pt(bounds.MinX, bounds.MinY)
		sx := (pw - 2*opts.Margin) / max(bounds.Width(), 1)
		sy := (ph - 2*opts.Margin) / max(bounds.Height(), 1)
		pg.scale = min(sx, sy)
	}

	for _, o := range objs {
		draw(p, pg, o)
	}
	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	log.Debugf("exported %d objects at scale %.3f", len(objs), pg.scale)
	return nil
}

func draw(p *gofpdf.Fpdf, pg page, o state.Object) {
	r, g, b := parseColor(o.Style.StrokeColor)
	p.SetDrawColor(r, g, b)
	p.SetTextColor(r, g, b)
	p.SetLineWidth(max(pg.size(o.Style.StrokeWidth), 0.1))
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	alpha := o.Style.Opacity
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	p.SetAlpha(alpha, "Normal")

	style := "D"
	if o.Style.Fill != "" && o.Style.Fill != "transparent" {
		fr, fg, fb := parseColor(o.Style.Fill)
		p.SetFillColor(fr, fg, fb)
		style = "DF"
	}

	x, y := pg.pt(o.Anchor())
	wd, ht := pg.size(o.Width), pg.size(o.Height)
	if o.Rotation != 0 {
		p.TransformBegin()
		p.TransformRotate(-o.Rotation, x+wd/2, y+ht/2)
		defer p.TransformEnd()
	}

	switch o.Type {
	case state.TypePath:
		pts := o.Points()
		if len(pts) == 1 {
			cx, cy := pg.pt(pts[0])
			p.SetFillColor(r, g, b)
			p.Circle(cx, cy, pg.size(o.Style.StrokeWidth)/2, "F")
			return
		}
		for i := 1; i < len(pts); i++ {
			x1, y1 := pg.pt(pts[i-1])
			x2, y2 := pg.pt(pts[i])
			p.Line(x1, y1, x2, y2)
		}
	case state.TypeRectangle:
		p.Rect(x, y, wd, ht, style)
	case state.TypeCircle:
		p.Ellipse(x+wd/2, y+ht/2, wd/2, ht/2, 0, style)
	case state.TypeLine:
		p.Line(x, y, x+wd, y+ht)
	case state.TypeText:
		size := ht / 0.3528 // mm to pt
		if size <= 0 {
			size = 12
		}
		p.SetFont("Helvetica", "", size)
		p.Text(x, y+ht, o.Data)
	case state.TypeImage, state.TypeStamp:
		// assets are not embedded; mark where they sit
		p.SetDashPattern([]float64{2, 2}, 0)
		p.Rect(x, y, wd, ht, "D")
		p.SetDashPattern([]float64{}, 0)
	default:
		log.Warnf("skipping %s object %s", o.Type, o.ID)
	}
}

// parseColor reads #rgb and #rrggbb colours. Anything else is black.
func parseColor(s string) (int, int, int) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return 0, 0, 0
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
