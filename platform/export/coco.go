package export

type CocoImage struct {
	Id       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type CocoAnnotation struct {
	Id           int         `json:"id"`
	ImageId      int         `json:"image_id"`
	CategoryId   int         `json:"category_id"`
	Bbox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	Segmentation [][]float64 `json:"segmentation"`
	IsCrowd      int         `json:"iscrowd"`
}

type CocoCategory struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type CocoDataset struct {
	Images      []CocoImage      `json:"images"`
	Annotations []CocoAnnotation `json:"annotations"`
	Categories  []CocoCategory   `json:"categories"`
}

// ToCOCO builds a COCO detection dataset. Category ids are 1-based indices
// into the label class list, bbox entries are [x, y, width, height]. Polygon
// shapes carry their point list as the segmentation.
func ToCOCO(input Input, defaults Defaults) CocoDataset {
	dataset := CocoDataset{
		Images:      make([]CocoImage, 0, len(input.Annotations)),
		Annotations: make([]CocoAnnotation, 0),
		Categories:  make([]CocoCategory, 0, len(input.LabelClasses)),
	}

	for i, class := range input.LabelClasses {
		dataset.Categories = append(dataset.Categories, CocoCategory{Id: i + 1, Name: class})
	}

	annotationId := 1
	for imageId, image := range sortedImages(input) {
		ann := input.Annotations[image]
		width, height := dimensions(ann, defaults)

		dataset.Images = append(dataset.Images, CocoImage{
			Id:       imageId + 1,
			FileName: imageFilename(image),
			Width:    width,
			Height:   height,
		})

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

			boxWidth, boxHeight := xmax-xmin, ymax-ymin

			cocoAnn := CocoAnnotation{
				Id:           annotationId,
				ImageId:      imageId + 1,
				CategoryId:   classIdx + 1,
				Bbox:         [4]float64{xmin, ymin, boxWidth, boxHeight},
				Area:         boxWidth * boxHeight,
				Segmentation: [][]float64{},
			}
			if shape.Type == "polygon" {
				cocoAnn.Segmentation = [][]float64{shape.Points}
			}

			dataset.Annotations = append(dataset.Annotations, cocoAnn)
			annotationId++
		}
	}

	return dataset
}
