package storage

import (
	"fmt"
	"io"

	"github.com/absmach/dronefl/pkg/storage/badger"
	"github.com/absmach/dronefl/pkg/storage/file"
)

type Config struct {
	Type       string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`
	BadgerPath string `env:"COORDINATOR_BADGER_PATH"  envDefault:"./data/badger"`
	FileDir    string `env:"COORDINATOR_FILE_DIR"     envDefault:"./data/history"`
}

type Repositories struct {
	Reports ReportRepository
	Blobs   BlobRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory and file backends.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "badger":
		return newBadgerRepositories(cfg)
	case "file":
		return newFileRepositories(cfg)
	case "memory", "":
		return newMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Reports: badger.NewReportRepository(db),
		Blobs:   badger.NewBlobRepository(db),
		Closer:  db,
	}, nil
}

func newFileRepositories(cfg Config) (*Repositories, error) {
	store, err := file.NewStore(cfg.FileDir)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Reports: file.NewReportRepository(store),
		Blobs:   file.NewBlobRepository(store),
	}, nil
}

func newMemoryRepositories() *Repositories {
	return &Repositories{
		Reports: NewInMemoryReports(),
		Blobs:   NewInMemoryBlobs(),
	}
}
