package canvas

import (
	"math"
	"sync"

	"drawsync/internal/models"
)

// Store holds the authoritative local view of drawable shapes, the
// undo/redo history, and the current tool/style selection state. Remote
// events merge in without touching the undo history; only local discrete
// actions (add, delete) are undoable units, so a freehand stroke is
// undone as a whole, not point by point.
type Store struct {
	mu sync.Mutex

	shapes   []*models.Stroke
	selected *models.Stroke

	currentTool  models.ShapeType
	currentStyle models.ShapeStyle

	undoStack [][]*models.Stroke
	redoStack [][]*models.Stroke
}

// NewStore creates an empty store with the default tool and style
func NewStore() *Store {
	return &Store{
		currentTool: models.ShapeRectangle,
		currentStyle: models.ShapeStyle{
			StrokeColor: "#000000",
			FillColor:   "transparent",
			StrokeWidth: 2,
			Opacity:     1,
		},
	}
}

// AddShape appends a locally drawn shape. The pre-mutation collection is
// pushed onto the undo stack and the redo stack is cleared: a new action
// invalidates redo history.
func (s *Store) AddShape(shape *models.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushUndoLocked()
	s.shapes = append(s.shapes, shape)
}

// UpdateShape replaces the shape with the same id in place. Continuous
// drag/paint updates are not individually undoable, so no snapshot is
// taken here.
func (s *Store) UpdateShape(shape *models.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.shapes {
		if existing.ID == shape.ID {
			s.shapes[i] = shape
			if s.selected != nil && s.selected.ID == shape.ID {
				s.selected = shape
			}
			return
		}
	}
}

// DeleteShape removes a shape by id as an undoable action
func (s *Store) DeleteShape(shapeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushUndoLocked()

	kept := make([]*models.Stroke, 0, len(s.shapes))
	for _, shape := range s.shapes {
		if shape.ID != shapeID {
			kept = append(kept, shape)
		}
	}
	s.shapes = kept

	if s.selected != nil && s.selected.ID == shapeID {
		s.selected = nil
	}
}

// AddRemoteShape merges a shape received from another participant. If a
// shape with the same id exists this is an in-progress update, otherwise
// an append. Remote edits are not locally undoable: neither stack moves.
func (s *Store) AddRemoteShape(shape *models.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.shapes {
		if existing.ID == shape.ID {
			s.shapes[i] = shape
			return
		}
	}
	s.shapes = append(s.shapes, shape)
}

// Undo restores the collection to its state before the latest undoable
// action. No-op on an empty undo stack.
func (s *Store) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undoStack) == 0 {
		return
	}

	snapshot := s.undoStack[len(s.undoStack)-1]
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.redoStack = append(s.redoStack, s.shapes)
	s.shapes = snapshot
	s.clearSelectionLocked()
}

// Redo re-applies the most recently undone action. No-op on an empty
// redo stack.
func (s *Store) Redo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redoStack) == 0 {
		return
	}

	snapshot := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.undoStack = append(s.undoStack, s.shapes)
	s.shapes = snapshot
	s.clearSelectionLocked()
}

// clearSelectionLocked drops the selection and any selection flag the
// restored shapes carry. Snapshots share stroke pointers with the live
// slice, so a shape selected after the snapshot was taken would
// otherwise come back with the flag still set.
func (s *Store) clearSelectionLocked() {
	for _, shape := range s.shapes {
		shape.IsSelected = false
	}
	s.selected = nil
}

// Clear resets the store to its initial empty state, history included.
// This is what a remote clear marker maps to.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shapes = nil
	s.selected = nil
	s.undoStack = nil
	s.redoStack = nil
}

// Shapes returns the current collection in draw order
func (s *Store) Shapes() []*models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()

	shapes := make([]*models.Stroke, len(s.shapes))
	copy(shapes, s.shapes)
	return shapes
}

// ShapeAt hit-tests a point against the collection, iterating from
// most-recently-added to least: the top-most shape wins.
func (s *Store) ShapeAt(p models.Point) *models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.shapes) - 1; i >= 0; i-- {
		if hitTest(s.shapes[i], p) {
			return s.shapes[i]
		}
	}
	return nil
}

// Select marks the shape at a point as selected and returns it, clearing
// any previous selection. Returns nil when the point hits nothing.
func (s *Store) Select(p models.Point) *models.Stroke {
	shape := s.ShapeAt(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil {
		s.selected.IsSelected = false
	}
	s.selected = shape
	if shape != nil {
		shape.IsSelected = true
	}
	return shape
}

// Selected returns the currently selected shape, if any
func (s *Store) Selected() *models.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetTool sets the active drawing tool
func (s *Store) SetTool(tool models.ShapeType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTool = tool
}

// Tool returns the active drawing tool
func (s *Store) Tool() models.ShapeType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTool
}

// SetStyle sets the style applied to newly drawn shapes
func (s *Store) SetStyle(style models.ShapeStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStyle = style
}

// Style returns the style applied to newly drawn shapes
func (s *Store) Style() models.ShapeStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStyle
}

// pushUndoLocked snapshots the pre-mutation collection. Snapshots share
// stroke pointers with the live slice: geometry updates replace entries
// rather than mutating them, and restore clears IsSelected, the one
// field Select writes in place.
func (s *Store) pushUndoLocked() {
	snapshot := make([]*models.Stroke, len(s.shapes))
	copy(snapshot, s.shapes)
	s.undoStack = append(s.undoStack, snapshot)
	s.redoStack = nil
}

// hitTest reports whether a point falls on a shape. Circles test
// Euclidean distance from the start point against the radius implied by
// start/end; everything else uses the axis-aligned bounding box of
// start/end.
func hitTest(shape *models.Stroke, p models.Point) bool {
	if shape.Type == models.ShapeCircle {
		radius := distance(shape.StartPoint, shape.EndPoint)
		return distance(shape.StartPoint, p) <= radius
	}

	minX := math.Min(shape.StartPoint.X, shape.EndPoint.X)
	maxX := math.Max(shape.StartPoint.X, shape.EndPoint.X)
	minY := math.Min(shape.StartPoint.Y, shape.EndPoint.Y)
	maxY := math.Max(shape.StartPoint.Y, shape.EndPoint.Y)

	return p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY
}

func distance(a, b models.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
