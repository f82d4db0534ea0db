package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile dumps the default registry in the node-exporter textfile format.
// Batch runs have no scrape endpoint, so the collector picks this file up instead.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
