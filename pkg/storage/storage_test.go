package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
	"github.com/absmach/dronefl/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]*storage.Repositories {
	t.Helper()

	dir := t.TempDir()
	repos := make(map[string]*storage.Repositories)
	for _, cfg := range []storage.Config{
		{Type: "memory"},
		{Type: "badger", BadgerPath: filepath.Join(dir, "badger")},
		{Type: "file", FileDir: filepath.Join(dir, "files")},
	} {
		r, err := storage.NewRepositories(cfg)
		require.NoError(t, err, cfg.Type)
		if r.Closer != nil {
			t.Cleanup(func() {
				r.Closer.Close()
			})
		}
		repos[cfg.Type] = r
	}

	return repos
}

func testReport(runID string, round uint64) fl.Report {
	acc := 72.5

	return fl.Report{
		RunID: runID,
		Round: round,
		Outcomes: []fl.Outcome{
			{DroneID: "drone-1", Round: round, Tag: fl.Success, SampleCount: 10, Metrics: fl.Metrics{Priority: fl.PriorityHigh, NetworkQuality: 0.9, Accuracy: 72.5}},
			{DroneID: "drone-2", Round: round, Tag: fl.SkippedDisconnected, Reason: "link disconnected", Recovery: 3 * time.Second},
		},
		Dispatched:   2,
		Successes:    1,
		Failures:     1,
		Accuracy:     &acc,
		Contributors: []string{"drone-1"},
		Excluded:     []string{"drone-2"},
		BlobVersion:  round,
		Aggregated:   true,
		StartedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
	}
}

func TestReportRepository(t *testing.T) {
	for name, repos := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runID := uuid.NewString()

			for round := uint64(1); round <= 12; round++ {
				require.NoError(t, repos.Reports.Create(ctx, testReport(runID, round)))
			}
			require.NoError(t, repos.Reports.Create(ctx, testReport(uuid.NewString(), 1)))

			err := repos.Reports.Create(ctx, testReport(runID, 3))
			assert.ErrorIs(t, err, pkgerrors.ErrEntityExists, "history is append-only")

			err = repos.Reports.Create(ctx, testReport("", 1))
			assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)

			got, err := repos.Reports.Get(ctx, runID, 7)
			require.NoError(t, err)
			assert.Equal(t, testReport(runID, 7), got)

			_, err = repos.Reports.Get(ctx, runID, 99)
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

			cases := []struct {
				desc   string
				offset uint64
				limit  uint64
				rounds []uint64
			}{
				{desc: "first page", offset: 0, limit: 5, rounds: []uint64{1, 2, 3, 4, 5}},
				{desc: "numeric order past nine", offset: 8, limit: 10, rounds: []uint64{9, 10, 11, 12}},
				{desc: "offset past end", offset: 20, limit: 5},
			}
			for _, tc := range cases {
				t.Run(tc.desc, func(t *testing.T) {
					reports, total, err := repos.Reports.List(ctx, runID, tc.offset, tc.limit)
					require.NoError(t, err)
					assert.Equal(t, uint64(12), total)
					rounds := make([]uint64, 0, len(reports))
					for _, r := range reports {
						assert.Equal(t, runID, r.RunID)
						rounds = append(rounds, r.Round)
					}
					assert.Equal(t, fmt.Sprint(tc.rounds), fmt.Sprint(rounds))
				})
			}
		})
	}
}

func TestBlobRepository(t *testing.T) {
	for name, repos := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repos.Blobs.Latest(ctx)
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

			var last fl.BlobVersion
			for version := uint64(0); version <= 11; version++ {
				blob, err := fl.EncodeTensors(fl.Tensors{"w": {float64(version)}})
				require.NoError(t, err)
				last = fl.BlobVersion{
					Version:   version,
					RunID:     "run-1",
					Round:     version,
					Digest:    blob.Digest(),
					Size:      blob.Len(),
					Blob:      blob,
					CreatedAt: time.Date(2026, 3, 1, 10, 0, int(version), 0, time.UTC),
				}
				require.NoError(t, repos.Blobs.Save(ctx, last))
			}

			err = repos.Blobs.Save(ctx, last)
			assert.ErrorIs(t, err, pkgerrors.ErrEntityExists)

			latest, err := repos.Blobs.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(11), latest.Version)
			assert.True(t, last.Blob.Equal(latest.Blob))
			assert.Equal(t, last.Digest, latest.Blob.Digest())

			v, err := repos.Blobs.Get(ctx, 3)
			require.NoError(t, err)
			w, err := fl.DecodeTensors(v.Blob)
			require.NoError(t, err)
			assert.Equal(t, []float64{3}, w["w"])

			_, err = repos.Blobs.Get(ctx, 42)
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		})
	}
}

func TestUnsupportedStorage(t *testing.T) {
	_, err := storage.NewRepositories(storage.Config{Type: "postgres"})
	assert.ErrorIs(t, err, storage.ErrUnsupportedType)
}
