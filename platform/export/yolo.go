package export

import (
	"fmt"
	"strings"
)

// ToYOLO produces one label file per image, keyed by image filename with the
// extension replaced by .txt. Each line is
// "<class index> <center x> <center y> <width> <height>" with coordinates
// normalized by the image dimensions and rounded to 6 decimal places.
func ToYOLO(input Input, defaults Defaults) map[string]string {
	files := make(map[string]string, len(input.Annotations))

	for _, image := range sortedImages(input) {
		ann := input.Annotations[image]
		width, height := dimensions(ann, defaults)

		var lines []string
		for _, shape := range ann.Shapes {
			if !boxShape(shape.Type) {
				continue
			}
			classIdx := classIndex(input, shape.Label)
			if classIdx < 0 {
				continue
			}
			xmin, ymin, xmax, ymax, ok := boundingBox(shape.Points)
			if !ok {
				continue
			}

			centerX := round6((xmin + xmax) / 2 / float64(width))
			centerY := round6((ymin + ymax) / 2 / float64(height))
			boxWidth := round6((xmax - xmin) / float64(width))
			boxHeight := round6((ymax - ymin) / float64(height))

			lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", classIdx, centerX, centerY, boxWidth, boxHeight))
		}

		name := imageFilename(image)
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		files[name+".txt"] = strings.Join(lines, "\n")
	}

	return files
}
