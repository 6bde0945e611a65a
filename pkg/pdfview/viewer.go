package pdfview

import (
	"fmt"
	"math"
)

// Zoom bounds and step for the native renderer.
const (
	MinZoom  = 0.5
	MaxZoom  = 3.0
	ZoomStep = 0.2
)

// Viewer tracks page and zoom for the native renderer.
type Viewer struct {
	page  int
	pages int
	zoom  float64
}

// NewViewer opens a document at page 1 and 100% zoom. pages may be 0
// until the document has loaded.
func NewViewer(pages int) *Viewer {
	return &Viewer{page: 1, pages: max(pages, 0), zoom: 1.0}
}

func (v *Viewer) Page() int        { return v.page }
func (v *Viewer) Pages() int       { return v.pages }
func (v *Viewer) Zoom() float64    { return v.zoom }
func (v *Viewer) ZoomPercent() int { return int(math.Round(v.zoom * 100)) }

// SetPages records the page count once known and re-clamps the page.
func (v *Viewer) SetPages(pages int) {
	v.pages = max(pages, 0)
	v.GoTo(v.page)
}

// GoTo moves to page n, clamped to [1, pages].
func (v *Viewer) GoTo(n int) {
	v.page = max(1, min(n, max(v.pages, 1)))
}

func (v *Viewer) NextPage() { v.GoTo(v.page + 1) }
func (v *Viewer) PrevPage() { v.GoTo(v.page - 1) }

// CanNext and CanPrev report whether the page buttons are enabled.
func (v *Viewer) CanNext() bool { return v.page < v.pages }
func (v *Viewer) CanPrev() bool { return v.page > 1 }

func (v *Viewer) ZoomIn()  { v.SetZoom(v.zoom + ZoomStep) }
func (v *Viewer) ZoomOut() { v.SetZoom(v.zoom - ZoomStep) }

// SetZoom clamps to [MinZoom, MaxZoom] and rounds to one decimal so
// repeated steps do not drift.
func (v *Viewer) SetZoom(z float64) {
	z = math.Round(z*10) / 10
	v.zoom = math.Max(MinZoom, math.Min(z, MaxZoom))
}

// Action is a toolbar button of the native renderer.
type Action string

const (
	ActionNext    Action = "next"
	ActionPrev    Action = "prev"
	ActionZoomIn  Action = "zoom_in"
	ActionZoomOut Action = "zoom_out"
)

// Apply performs a toolbar action. The empty action does nothing.
func (v *Viewer) Apply(a Action) error {
	switch a {
	case "":
	case ActionNext:
		v.NextPage()
	case ActionPrev:
		v.PrevPage()
	case ActionZoomIn:
		v.ZoomIn()
	case ActionZoomOut:
		v.ZoomOut()
	default:
		return fmt.Errorf("unknown viewer action %q", a)
	}
	return nil
}

// State is what the toolbar renders.
type State struct {
	Page        int  `json:"page"`
	Pages       int  `json:"pages"`
	ZoomPercent int  `json:"zoom_percent"`
	CanNext     bool `json:"can_next"`
	CanPrev     bool `json:"can_prev"`
	CanZoomIn   bool `json:"can_zoom_in"`
	CanZoomOut  bool `json:"can_zoom_out"`
}

func (v *Viewer) State() State {
	return State{
		Page:        v.page,
		Pages:       v.pages,
		ZoomPercent: v.ZoomPercent(),
		CanNext:     v.CanNext(),
		CanPrev:     v.CanPrev(),
		CanZoomIn:   v.zoom < MaxZoom,
		CanZoomOut:  v.zoom > MinZoom,
	}
}
