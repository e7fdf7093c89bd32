package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
)

type reportKey struct {
	runID string
	round uint64
}

type inMemoryReports struct {
	sync.Mutex

	data map[reportKey]fl.Report
}

func NewInMemoryReports() ReportRepository {
	return &inMemoryReports{
		data: make(map[reportKey]fl.Report),
	}
}

func (s *inMemoryReports) Create(_ context.Context, r fl.Report) error {
	if r.RunID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	key := reportKey{runID: r.RunID, round: r.Round}
	if _, ok := s.data[key]; ok {
		return errors.ErrEntityExists
	}

	s.data[key] = r

	return nil
}

func (s *inMemoryReports) Get(_ context.Context, runID string, round uint64) (fl.Report, error) {
	if runID == "" {
		return fl.Report{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if r, ok := s.data[reportKey{runID: runID, round: round}]; ok {
		return r, nil
	}

	return fl.Report{}, errors.ErrNotFound
}

func (s *inMemoryReports) List(_ context.Context, runID string, offset, limit uint64) ([]fl.Report, uint64, error) {
	s.Lock()
	defer s.Unlock()

	rounds := make([]uint64, 0)
	for k := range s.data {
		if k.runID == runID {
			rounds = append(rounds, k.round)
		}
	}
	slices.Sort(rounds)

	total := uint64(len(rounds))
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)

	result := make([]fl.Report, 0, end-offset)
	for _, round := range rounds[offset:end] {
		result = append(result, s.data[reportKey{runID: runID, round: round}])
	}

	return result, total, nil
}

type inMemoryBlobs struct {
	sync.Mutex

	data map[uint64]fl.BlobVersion
}

func NewInMemoryBlobs() BlobRepository {
	return &inMemoryBlobs{
		data: make(map[uint64]fl.BlobVersion),
	}
}

func (s *inMemoryBlobs) Save(_ context.Context, v fl.BlobVersion) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[v.Version]; ok {
		return errors.ErrEntityExists
	}

	s.data[v.Version] = v

	return nil
}

func (s *inMemoryBlobs) Get(_ context.Context, version uint64) (fl.BlobVersion, error) {
	s.Lock()
	defer s.Unlock()

	if v, ok := s.data[version]; ok {
		return v, nil
	}

	return fl.BlobVersion{}, errors.ErrNotFound
}

func (s *inMemoryBlobs) Latest(_ context.Context) (fl.BlobVersion, error) {
	s.Lock()
	defer s.Unlock()

	var (
		latest fl.BlobVersion
		found  bool
	)
	for version, v := range s.data {
		if !found || version > latest.Version {
			latest, found = v, true
		}
	}
	if !found {
		return fl.BlobVersion{}, errors.ErrNotFound
	}

	return latest, nil
}
