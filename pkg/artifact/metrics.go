package artifact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BytesWritten tracks bytes written to disk.
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amadown_artifact_bytes_total",
		Help: "Total bytes of captured pages written to disk",
	})

	// Errors tracks store failures by operation.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amadown_artifact_errors_total",
		Help: "Artifact store failures by operation",
	}, []string{"op"}) // "exists", "save", "load", "mirror"
)
