package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadedFilesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotation_uploaded_files_total",
		Help: "Files written into project upload trees.",
	})
	uploadBytesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotation_uploaded_bytes_total",
		Help: "Bytes written into project upload trees.",
	})
	annotationSavesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotation_saves_total",
		Help: "Annotation documents saved.",
	})
	exportMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "annotation_exports_total",
		Help: "Annotation exports by format.",
	}, []string{"format"})
	fileServesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotation_file_serves_total",
		Help: "Static files served from upload trees.",
	})
)
