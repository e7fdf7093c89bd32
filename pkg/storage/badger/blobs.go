package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/absmach/dronefl/pkg/fl"
)

var blobPrefix = []byte("blob:")

type blobRepo struct {
	db *Database
}

func NewBlobRepository(db *Database) BlobRepository {
	return &blobRepo{db: db}
}

func blobKey(version uint64) []byte {
	return fmt.Appendf(append([]byte{}, blobPrefix...), "%020d", version)
}

func (r *blobRepo) Save(_ context.Context, v fl.BlobVersion) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.create(blobKey(v.Version), val)
}

func (r *blobRepo) Get(_ context.Context, version uint64) (fl.BlobVersion, error) {
	val, err := r.db.get(blobKey(version))
	if err != nil {
		return fl.BlobVersion{}, err
	}

	return decodeBlobVersion(val)
}

func (r *blobRepo) Latest(_ context.Context) (fl.BlobVersion, error) {
	val, err := r.db.lastWithPrefix(blobPrefix)
	if err != nil {
		return fl.BlobVersion{}, err
	}

	return decodeBlobVersion(val)
}

func decodeBlobVersion(val []byte) (fl.BlobVersion, error) {
	var v fl.BlobVersion
	if err := json.Unmarshal(val, &v); err != nil {
		return fl.BlobVersion{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return v, nil
}
