package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guyvdb/gestioneau/fault"

	"go.etcd.io/bbolt"
)

// BoltStore implements the store.Store interface using BoltDB.
var _ Store = (*BoltStore)(nil)

type BoltStore struct {
	db          *bbolt.DB
	typeManager StoreTypeManager
}

// NewBoltStore opens (or creates) the BoltDB file at path.
func NewBoltStore(path string, typeManager StoreTypeManager) (*BoltStore, error) {
	slog.Debug("NewBoltStore - create bolt store", "path", path)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Buckets for types will be created on demand.
	return &BoltStore{db: db, typeManager: typeManager}, nil
}

// Save allocates an id for new items and stores them.
func (bs *BoltStore) Save(m Storable) error {
	if m == nil {
		return fault.ErrNilStorable
	}
	if m.GetId() == nil {
		if err := bs.AllocateId(m); err != nil {
			return fmt.Errorf("allocate id for %s: %w", m.GetTypeName(), err)
		}
	}
	return bs.Put(m)
}

// Put stores a Storable model under its id.
func (bs *BoltStore) Put(m Storable) error {
	if m == nil {
		return fault.ErrNilStorable
	}

	id := m.GetId()
	if id == nil {
		return fault.ErrStorableHasNilId
	}

	bucketNameBytes, err := bs.typeBucketKey(id.TypeId)
	if err != nil {
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrMarshalFailed, err)
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketNameBytes)
		if err != nil {
			return fault.ErrBucketCreateFailed
		}

		if err := bucket.Put(id.Key(), data); err != nil {
			return fmt.Errorf("%w: %w", fault.ErrPutFailed, err)
		}
		slog.Debug("BoltStore.Put", "id", id.String(), "bucket", string(bucketNameBytes))
		return nil
	})
}

// Exists checks if a model with the given Id exists.
func (bs *BoltStore) Exists(id *Id) (bool, error) {
	if id == nil {
		return false, fault.ErrIdIsNil
	}

	bucketNameBytes, err := bs.typeBucketKey(id.TypeId)
	if err != nil {
		return false, err
	}

	var exists bool
	err = bs.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNameBytes)
		if bucket == nil {
			// No bucket yet means nothing of this type was ever written.
			return nil
		}
		exists = bucket.Get(id.Key()) != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Get retrieves a model by its id. Unknown ids yield fault.ErrKeyNotFound.
func (bs *BoltStore) Get(id *Id) (Storable, error) {
	if id == nil {
		return nil, fault.ErrIdIsNil
	}

	bucketNameBytes, err := bs.typeBucketKey(id.TypeId)
	if err != nil {
		return nil, err
	}

	var result Storable
	err = bs.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNameBytes)
		if bucket == nil {
			return fault.ErrKeyNotFound
		}

		val := bucket.Get(id.Key())
		if val == nil {
			return fault.ErrKeyNotFound
		}

		instance, err := bs.typeManager.CreateInstance(id.TypeId)
		if err != nil {
			return fault.ErrTypeNotCreated
		}

		if err := instance.Unmarshal(val); err != nil {
			return fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
		}
		result = instance
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetAll retrieves all Storable models of a given typeId in id order.
func (bs *BoltStore) GetAll(typeId int64) ([]Storable, error) {
	return bs.getAllFromBucket(typeId)
}

func (bs *BoltStore) getAllFromBucket(typeId int64) ([]Storable, error) {
	results := make([]Storable, 0)

	bucketNameBytes, err := bs.typeBucketKey(typeId)
	if err != nil {
		return nil, err
	}

	err = bs.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNameBytes)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			instance, err := bs.typeManager.CreateInstance(typeId)
			if err != nil {
				return fault.ErrTypeNotCreated
			}

			// v is only valid for the lifetime of the transaction.
			valueBytes := make([]byte, len(v))
			copy(valueBytes, v)

			if err := instance.Unmarshal(valueBytes); err != nil {
				return fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
			}
			results = append(results, instance)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Count returns the number of stored models of a type.
func (bs *BoltStore) Count(typeId int64) (int64, error) {
	bucketNameBytes, err := bs.typeBucketKey(typeId)
	if err != nil {
		return 0, err
	}

	var n int64
	err = bs.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNameBytes)
		if bucket == nil {
			return nil
		}
		n = int64(bucket.Stats().KeyN)
		return nil
	})
	return n, err
}

// Delete removes a model by its id. Deleting an unknown id is not an error.
func (bs *BoltStore) Delete(id *Id) error {
	if id == nil {
		return fault.ErrIdIsNil
	}

	bucketNameBytes, err := bs.typeBucketKey(id.TypeId)
	if err != nil {
		return err
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNameBytes)
		if bucket == nil {
			slog.Debug("BoltStore.Delete: bucket not found, considering delete successful", "id", id.String())
			return nil
		}

		// bbolt's Delete doesn't return an error if the key is not found.
		if err := bucket.Delete(id.Key()); err != nil {
			return fmt.Errorf("%w: item %s from bucket %s: %w", fault.ErrDeleteFailed, id.String(), string(bucketNameBytes), err)
		}
		slog.Debug("BoltStore.Delete: deleted item", "id", id.String(), "bucket", string(bucketNameBytes))
		return nil
	})
}

func (bs *BoltStore) AllocateId(item Storable) error {
	return bs.typeManager.AllocateId(item)
}

// AllocateBucketIfNeeded creates the bucket of a type name up front.
func (bs *BoltStore) AllocateBucketIfNeeded(typeName string) error {
	var bucketNameBytes []byte

	if isSystemType(typeName) {
		bucketNameBytes = []byte("Type." + typeName)
	} else {
		typeId, err := bs.typeManager.GetTypeId(typeName)
		if err != nil {
			slog.Warn("AllocateBucketIfNeeded - type not found", "typeName", typeName)
			return fault.ErrTypeNotFound
		}

		bucketNameBytes, err = bs.typeBucketKey(typeId)
		if err != nil {
			return err
		}
	}

	return bs.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNameBytes)
		return err
	})
}

func (bs *BoltStore) typeBucketKey(typeId int64) ([]byte, error) {
	typeName, err := bs.typeManager.GetTypeName(typeId)
	if err != nil {
		return []byte{}, fault.ErrTypeNotFound
	}

	return []byte("Type." + typeName), nil
}

func isSystemType(typeName string) bool {
	return typeName == "RegistryInfo" || typeName == "RegistryItem"
}

// Ping reports whether the underlying file is still open and readable.
func (bs *BoltStore) Ping() error {
	if bs.db == nil {
		return fault.ErrStoreClosed
	}
	return bs.db.View(func(tx *bbolt.Tx) error { return nil })
}

// Close closes the BoltDB database.
func (bs *BoltStore) Close() error {
	slog.Debug("BoltStore.Close() - close db")
	if bs.db == nil {
		return nil
	}
	err := bs.db.Close()
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil
	}
	return err
}
