package export

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type vocBndBox struct {
	Xmin float64 `xml:"xmin"`
	Ymin float64 `xml:"ymin"`
	Xmax float64 `xml:"xmax"`
	Ymax float64 `xml:"ymax"`
}

type vocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    vocBndBox `xml:"bndbox"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

// ToVOC produces one Pascal VOC XML document per image, keyed by image
// filename with the extension replaced by .xml.
func ToVOC(input Input, defaults Defaults) (map[string]string, error) {
	files := make(map[string]string, len(input.Annotations))

	for _, image := range sortedImages(input) {
		ann := input.Annotations[image]
		width, height := dimensions(ann, defaults)

		doc := vocAnnotation{
			Folder:   "images",
			Filename: imageFilename(image),
			Size:     vocSize{Width: width, Height: height, Depth: 3},
		}

		for _, shape := range ann.Shapes {
			if !boxShape(shape.Type) {
				continue
			}
			xmin, ymin, xmax, ymax, ok := boundingBox(shape.Points)
			if !ok {
				continue
			}

			doc.Objects = append(doc.Objects, vocObject{
				Name:   shape.Label,
				Pose:   "Unspecified",
				BndBox: vocBndBox{Xmin: xmin, Ymin: ymin, Xmax: xmax, Ymax: ymax},
			})
		}

		data, err := xml.MarshalIndent(doc, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("error serializing voc annotation for %v: %w", image, err)
		}

		name := imageFilename(image)
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		files[name+".xml"] = xml.Header + string(data)
	}

	return files, nil
}
