package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_task_duration_seconds",
			Help: "Time spent executing tasks",
		},
		[]string{"task_type", "status"},
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Tasks that reached a terminal status",
		},
		[]string{"task_type", "status"},
	)

	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_length",
			Help: "Tasks waiting to be dispatched",
		},
	)

	queuePaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_paused",
			Help: "Whether dispatch is paused (1) or running (0)",
		},
	)

	ocrFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_ocr_fallbacks_total",
			Help: "Documents whose native extraction fell back to OCR",
		},
	)
)

func init() {
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(queueLength)
	prometheus.MustRegister(queuePaused)
	prometheus.MustRegister(ocrFallbacks)
}
