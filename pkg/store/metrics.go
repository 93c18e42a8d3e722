package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pilotdeck_store_ops_total",
	Help: "Row store operations by op and table.",
}, []string{"op", "table"})

func countOp(op, table string) {
	opsTotal.WithLabelValues(op, table).Inc()
}

// DiskUsageBytes returns the best-effort on-disk size of the store
// directory. Zero when the store is not open.
func DiskUsageBytes() uint64 {
	if db == nil || dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
