package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	pkgerrors "github.com/absmach/dronefl/pkg/errors"
	"github.com/absmach/dronefl/pkg/fl"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

var errInvalidRunID = errors.New("invalid run id")

type ReportRepository interface {
	Create(ctx context.Context, r fl.Report) error
	Get(ctx context.Context, runID string, round uint64) (fl.Report, error)
	List(ctx context.Context, runID string, offset, limit uint64) ([]fl.Report, uint64, error)
}

type BlobRepository interface {
	Save(ctx context.Context, v fl.BlobVersion) error
	Get(ctx context.Context, version uint64) (fl.BlobVersion, error)
	Latest(ctx context.Context) (fl.BlobVersion, error)
}

// Store keeps one JSON document per report and per blob version under dir.
type Store struct {
	reportsDir string
	blobsDir   string
	mu         sync.RWMutex
}

func NewStore(dir string) (*Store, error) {
	reportsDir := filepath.Join(dir, "reports")
	blobsDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(reportsDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	if err := os.MkdirAll(blobsDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}

	return &Store{
		reportsDir: reportsDir,
		blobsDir:   blobsDir,
	}, nil
}

// writeNew writes v as JSON to path, failing when the file already exists.
func writeNew(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return pkgerrors.ErrEntityExists
		}

		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pkgerrors.ErrNotFound
		}

		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

type reportRepo struct {
	store *Store
}

func NewReportRepository(store *Store) ReportRepository {
	return &reportRepo{store: store}
}

func (r *reportRepo) path(runID string, round uint64) (string, error) {
	sanitized := sanitizeID(runID)
	if sanitized == "" || sanitized != runID {
		return "", fmt.Errorf("%w: %q", errInvalidRunID, runID)
	}

	return filepath.Join(r.store.reportsDir, fmt.Sprintf("report_%s_%d.json", sanitized, round)), nil
}

func (r *reportRepo) Create(_ context.Context, rep fl.Report) error {
	if rep.RunID == "" {
		return pkgerrors.ErrEmptyKey
	}
	path, err := r.path(rep.RunID, rep.Round)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return writeNew(path, rep)
}

func (r *reportRepo) Get(_ context.Context, runID string, round uint64) (fl.Report, error) {
	if runID == "" {
		return fl.Report{}, pkgerrors.ErrEmptyKey
	}
	path, err := r.path(runID, round)
	if err != nil {
		return fl.Report{}, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var rep fl.Report
	if err := readJSON(path, &rep); err != nil {
		return fl.Report{}, err
	}

	return rep, nil
}

func (r *reportRepo) List(ctx context.Context, runID string, offset, limit uint64) ([]fl.Report, uint64, error) {
	if sanitizeID(runID) != runID || runID == "" {
		return nil, 0, nil
	}

	r.store.mu.RLock()
	entries, err := os.ReadDir(r.store.reportsDir)
	r.store.mu.RUnlock()
	if err != nil {
		return nil, 0, err
	}

	prefix := "report_" + runID + "_"
	var rounds []uint64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		var round uint64
		if _, err := fmt.Sscanf(strings.TrimPrefix(name, prefix), "%d.json", &round); err == nil {
			rounds = append(rounds, round)
		}
	}
	slices.Sort(rounds)

	total := uint64(len(rounds))
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)

	reports := make([]fl.Report, 0, end-offset)
	for _, round := range rounds[offset:end] {
		rep, err := r.Get(ctx, runID, round)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, rep)
	}

	return reports, total, nil
}

type blobRepo struct {
	store *Store
}

func NewBlobRepository(store *Store) BlobRepository {
	return &blobRepo{store: store}
}

func (r *blobRepo) path(version uint64) string {
	return filepath.Join(r.store.blobsDir, fmt.Sprintf("blob_v%d.json", version))
}

func (r *blobRepo) Save(_ context.Context, v fl.BlobVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return writeNew(r.path(v.Version), v)
}

func (r *blobRepo) Get(_ context.Context, version uint64) (fl.BlobVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var v fl.BlobVersion
	if err := readJSON(r.path(version), &v); err != nil {
		return fl.BlobVersion{}, err
	}

	return v, nil
}

func (r *blobRepo) Latest(ctx context.Context) (fl.BlobVersion, error) {
	versions, err := r.versions()
	if err != nil {
		return fl.BlobVersion{}, err
	}
	if len(versions) == 0 {
		return fl.BlobVersion{}, pkgerrors.ErrNotFound
	}

	return r.Get(ctx, slices.Max(versions))
}

func (r *blobRepo) versions() ([]uint64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries, err := os.ReadDir(r.store.blobsDir)
	if err != nil {
		return nil, err
	}

	var versions []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var version uint64
		if _, err := fmt.Sscanf(entry.Name(), "blob_v%d.json", &version); err == nil {
			versions = append(versions, version)
		}
	}

	return versions, nil
}

// sanitizeID keeps only characters that are safe in file names.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
