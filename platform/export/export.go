// Package export converts stored annotation data into common labeling
// interchange formats (COCO, YOLO, Pascal VOC, CSV). All transforms are pure
// functions over the same input structure.
package export

import (
	"math"
	"path"
	"sort"
)

type Shape struct {
	Type   string    `json:"type"`
	Label  string    `json:"label"`
	Points []float64 `json:"points"`
}

type ImageAnnotations struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Shapes []Shape `json:"shapes"`
}

type Input struct {
	LabelClasses []string                    `json:"labelClasses"`
	Annotations  map[string]ImageAnnotations `json:"annotations"`
}

// Defaults supplies image dimensions when an annotation entry does not record
// them. YOLO normalization in particular is wrong if these do not match the
// real image size, so deployments should configure them per project type.
type Defaults struct {
	Width  int
	Height int
}

var DefaultDimensions = Defaults{Width: 800, Height: 600}

func (d Defaults) orDefault() Defaults {
	if d.Width <= 0 {
		d.Width = DefaultDimensions.Width
	}
	if d.Height <= 0 {
		d.Height = DefaultDimensions.Height
	}
	return d
}

func dimensions(ann ImageAnnotations, defaults Defaults) (int, int) {
	defaults = defaults.orDefault()
	w, h := ann.Width, ann.Height
	if w <= 0 {
		w = defaults.Width
	}
	if h <= 0 {
		h = defaults.Height
	}
	return w, h
}

// boundingBox computes the axis aligned bounding box of a shape's points.
// Points are stored as an interleaved flat array [x0, y0, x1, y1, ...], so
// even indices are x coordinates and odd indices are y coordinates.
func boundingBox(points []float64) (xmin, ymin, xmax, ymax float64, ok bool) {
	if len(points) < 4 {
		return 0, 0, 0, 0, false
	}

	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)

	for i, p := range points {
		if i%2 == 0 {
			xmin = math.Min(xmin, p)
			xmax = math.Max(xmax, p)
		} else {
			ymin = math.Min(ymin, p)
			ymax = math.Max(ymax, p)
		}
	}

	return xmin, ymin, xmax, ymax, true
}

// boxShape reports whether a shape type contributes a bounding box to the
// exports. Point and keypoint shapes are skipped.
func boxShape(shapeType string) bool {
	return shapeType == "rectangle" || shapeType == "polygon"
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func imageFilename(imageUrl string) string {
	return path.Base(imageUrl)
}

// sortedImages returns the annotation keys in a stable order so exports are
// deterministic.
func sortedImages(input Input) []string {
	images := make([]string, 0, len(input.Annotations))
	for image := range input.Annotations {
		images = append(images, image)
	}
	sort.Strings(images)
	return images
}

func classIndex(input Input, label string) int {
	for i, class := range input.LabelClasses {
		if class == label {
			return i
		}
	}
	return -1
}
