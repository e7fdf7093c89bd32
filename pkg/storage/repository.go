package storage

import (
	"context"

	"github.com/absmach/dronefl/pkg/fl"
)

// ReportRepository is the append-only round report history. Reports are keyed
// by run and round; creating an existing key fails with ErrEntityExists.
type ReportRepository interface {
	Create(ctx context.Context, r fl.Report) error
	Get(ctx context.Context, runID string, round uint64) (fl.Report, error)
	List(ctx context.Context, runID string, offset, limit uint64) ([]fl.Report, uint64, error)
}

// BlobRepository holds committed blob versions.
type BlobRepository interface {
	Save(ctx context.Context, v fl.BlobVersion) error
	Get(ctx context.Context, version uint64) (fl.BlobVersion, error)
	// Latest returns the highest version, or ErrNotFound when none exists.
	Latest(ctx context.Context) (fl.BlobVersion, error)
}
