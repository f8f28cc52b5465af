package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// ToCSV emits one data row per box shape with the header
// filename,width,height,class,xmin,ymin,xmax,ymax.
func ToCSV(input Input, defaults Defaults) (string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write([]string{"filename", "width", "height", "class", "xmin", "ymin", "xmax", "ymax"}); err != nil {
		return "", err
	}

	formatCoord := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	for _, image := range sortedImages(input) {
		ann := input.Annotations[image]
		width, height := dimensions(ann, defaults)

		for _, shape := range ann.Shapes {
			if !boxShape(shape.Type) {
				continue
			}
			xmin, ymin, xmax, ymax, ok := boundingBox(shape.Points)
			if !ok {
				continue
			}

			record := []string{
				imageFilename(image),
				strconv.Itoa(width),
				strconv.Itoa(height),
				shape.Label,
				formatCoord(xmin),
				formatCoord(ymin),
				formatCoord(xmax),
				formatCoord(ymax),
			}
			if err := writer.Write(record); err != nil {
				return "", err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
