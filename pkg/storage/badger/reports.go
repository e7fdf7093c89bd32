package badger

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
)

type reportRepo struct {
	db *Database
}

func NewReportRepository(db *Database) ReportRepository {
	return &reportRepo{db: db}
}

// Round numbers are zero padded so keys sort in round order.
func reportPrefix(runID string) []byte {
	return []byte("report:" + runID + ":")
}

func reportKey(runID string, round uint64) []byte {
	return fmt.Appendf(reportPrefix(runID), "%020d", round)
}

func (r *reportRepo) Create(_ context.Context, rep fl.Report) error {
	if rep.RunID == "" {
		return pkgerrors.ErrEmptyKey
	}
	val, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.create(reportKey(rep.RunID, rep.Round), val)
}

func (r *reportRepo) Get(_ context.Context, runID string, round uint64) (fl.Report, error) {
	if runID == "" {
		return fl.Report{}, pkgerrors.ErrEmptyKey
	}
	val, err := r.db.get(reportKey(runID, round))
	if err != nil {
		return fl.Report{}, err
	}
	var rep fl.Report
	if err := json.Unmarshal(val, &rep); err != nil {
		return fl.Report{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return rep, nil
}

func (r *reportRepo) List(_ context.Context, runID string, offset, limit uint64) ([]fl.Report, uint64, error) {
	prefix := reportPrefix(runID)
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	reports := make([]fl.Report, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &reports[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return reports, total, nil
}
