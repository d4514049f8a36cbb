package records

import "context"

// DatasetRepository loads the current dataset document from durable storage.
// Every call reads the medium afresh; implementations do not cache.
type DatasetRepository interface {
	Load(ctx context.Context) (*Dataset, error)
	// Source names the storage medium for logs and metrics.
	Source() string
}

// DatasetWriter replaces the stored dataset document. The service never
// writes; this is used by seeding and tests.
type DatasetWriter interface {
	Store(ctx context.Context, document []byte) error
}

// Pinger is implemented by repositories that can report reachability of
// their medium without loading the dataset.
type Pinger interface {
	Ping(ctx context.Context) error
}
