// Package stats provides a unified interface for collecting sync metrics.
package stats

// Metric names used throughout the library.
const (
	// Listing metrics.
	MetricFilesListed  = "pkgsync_files_listed_total"
	MetricFilesSkipped = "pkgsync_files_skipped_total"
	MetricFullReplays  = "pkgsync_full_replays_total"
	MetricListDuration = "pkgsync_list_duration_seconds"
	MetricPendingFiles = "pkgsync_pending_files"

	// Decoding metrics.
	MetricFilesYielded   = "pkgsync_files_yielded_total"
	MetricFileErrors     = "pkgsync_file_errors_total"
	MetricRecords        = "pkgsync_records_total"
	MetricMalformedLines = "pkgsync_malformed_lines_total"

	// Driver metrics.
	MetricCheckpointSequence = "pkgsync_checkpoint_sequence"
	MetricCheckpointChunk    = "pkgsync_checkpoint_chunk"
)

var help = map[string]string{
	MetricFilesListed:        "Data files found under the source prefix",
	MetricFilesSkipped:       "Listed keys that do not follow the data file naming convention",
	MetricFullReplays:        "Listings that restarted from the first file because the checkpoint was not found",
	MetricListDuration:       "Time spent listing a backend",
	MetricFilesYielded:       "Data files whose records were read",
	MetricFileErrors:         "Data files that could not be opened or read",
	MetricPendingFiles:       "Data files after the checkpoint in the latest listing",
	MetricRecords:            "Records decoded from data files",
	MetricMalformedLines:     "Lines skipped because they could not be parsed",
	MetricCheckpointSequence: "Sequence of the last committed checkpoint",
	MetricCheckpointChunk:    "Chunk of the last committed checkpoint",
}

// Help returns the description of a metric name, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
