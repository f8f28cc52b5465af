package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectInput(points []float64, width, height int) Input {
	return Input{
		LabelClasses: []string{"car", "person"},
		Annotations: map[string]ImageAnnotations{
			"photos/img1.jpg": {
				Width:  width,
				Height: height,
				Shapes: []Shape{{Type: "rectangle", Label: "car", Points: points}},
			},
		},
	}
}

func TestBoundingBoxInterleavedPoints(t *testing.T) {
	// Points are [x0, y0, x1, y1, ...]; the box is the min/max over the
	// even and odd positions respectively.
	xmin, ymin, xmax, ymax, ok := boundingBox([]float64{10, 40, 30, 20, 50, 60})
	require.True(t, ok)
	assert.Equal(t, 10.0, xmin)
	assert.Equal(t, 20.0, ymin)
	assert.Equal(t, 50.0, xmax)
	assert.Equal(t, 60.0, ymax)

	_, _, _, _, ok = boundingBox([]float64{1, 2})
	assert.False(t, ok)
}

func TestYoloRectangle(t *testing.T) {
	files := ToYOLO(rectInput([]float64{0, 0, 100, 50}, 800, 600), Defaults{})

	require.Len(t, files, 1)
	assert.Equal(t, "0 0.062500 0.041667 0.125000 0.083333", files["img1.txt"])
}

func TestYoloUsesDefaultDimensions(t *testing.T) {
	files := ToYOLO(rectInput([]float64{0, 0, 100, 50}, 0, 0), Defaults{})

	// Missing dimensions fall back to 800x600.
	require.Len(t, files, 1)
	assert.Equal(t, "0 0.062500 0.041667 0.125000 0.083333", files["img1.txt"])
}

func TestYoloConfiguredDefaults(t *testing.T) {
	files := ToYOLO(rectInput([]float64{0, 0, 100, 50}, 0, 0), Defaults{Width: 1000, Height: 500})

	require.Len(t, files, 1)
	assert.Equal(t, "0 0.050000 0.050000 0.100000 0.100000", files["img1.txt"])
}

func TestYoloSkipsUnknownLabels(t *testing.T) {
	input := rectInput([]float64{0, 0, 100, 50}, 800, 600)
	ann := input.Annotations["photos/img1.jpg"]
	ann.Shapes = append(ann.Shapes, Shape{Type: "rectangle", Label: "bicycle", Points: []float64{0, 0, 10, 10}})
	input.Annotations["photos/img1.jpg"] = ann

	files := ToYOLO(input, Defaults{})
	require.Len(t, files, 1)
	assert.Equal(t, 1, len(strings.Split(files["img1.txt"], "\n")))
}

func TestCsvHeaderAndRows(t *testing.T) {
	input := Input{
		LabelClasses: []string{"car"},
		Annotations: map[string]ImageAnnotations{
			"img1.jpg": {
				Width:  800,
				Height: 600,
				Shapes: []Shape{
					{Type: "rectangle", Label: "car", Points: []float64{0, 0, 100, 50}},
					{Type: "polygon", Label: "car", Points: []float64{10, 10, 20, 30, 5, 25}},
				},
			},
		},
	}

	out, err := ToCSV(input, Defaults{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "filename,width,height,class,xmin,ymin,xmax,ymax", lines[0])
	assert.Equal(t, "img1.jpg,800,600,car,0,0,100,50", lines[1])
	assert.Equal(t, "img1.jpg,800,600,car,5,10,20,30", lines[2])
}

func TestCsvSkipsPointShapes(t *testing.T) {
	input := Input{
		LabelClasses: []string{"car"},
		Annotations: map[string]ImageAnnotations{
			"img1.jpg": {
				Width:  800,
				Height: 600,
				Shapes: []Shape{{Type: "point", Label: "car", Points: []float64{5, 5}}},
			},
		},
	}

	out, err := ToCSV(input, Defaults{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 1)
}

func TestCocoDataset(t *testing.T) {
	input := Input{
		LabelClasses: []string{"car", "person"},
		Annotations: map[string]ImageAnnotations{
			"b.jpg": {
				Width:  640,
				Height: 480,
				Shapes: []Shape{{Type: "rectangle", Label: "person", Points: []float64{10, 20, 110, 220}}},
			},
			"a.jpg": {
				Width:  800,
				Height: 600,
				Shapes: []Shape{{Type: "polygon", Label: "car", Points: []float64{0, 0, 100, 0, 100, 50}}},
			},
		},
	}

	dataset := ToCOCO(input, Defaults{})

	require.Len(t, dataset.Images, 2)
	assert.Equal(t, "a.jpg", dataset.Images[0].FileName)
	assert.Equal(t, "b.jpg", dataset.Images[1].FileName)

	require.Len(t, dataset.Categories, 2)
	assert.Equal(t, 1, dataset.Categories[0].Id)
	assert.Equal(t, "car", dataset.Categories[0].Name)

	require.Len(t, dataset.Annotations, 2)

	polygon := dataset.Annotations[0]
	assert.Equal(t, 1, polygon.ImageId)
	assert.Equal(t, 1, polygon.CategoryId)
	assert.Equal(t, [4]float64{0, 0, 100, 50}, polygon.Bbox)
	assert.Equal(t, 5000.0, polygon.Area)
	require.Len(t, polygon.Segmentation, 1)

	rect := dataset.Annotations[1]
	assert.Equal(t, 2, rect.ImageId)
	assert.Equal(t, 2, rect.CategoryId)
	assert.Equal(t, [4]float64{10, 20, 100, 200}, rect.Bbox)
	assert.Empty(t, rect.Segmentation)
}

func TestVocDocument(t *testing.T) {
	files, err := ToVOC(rectInput([]float64{0, 0, 100, 50}, 800, 600), Defaults{})
	require.NoError(t, err)

	doc, ok := files["img1.xml"]
	require.True(t, ok)

	assert.Contains(t, doc, "<filename>img1.jpg</filename>")
	assert.Contains(t, doc, "<width>800</width>")
	assert.Contains(t, doc, "<height>600</height>")
	assert.Contains(t, doc, "<name>car</name>")
	assert.Contains(t, doc, "<xmax>100</xmax>")
	assert.Contains(t, doc, "<ymax>50</ymax>")
}
