package store

// Storable is anything the primary store can persist. Implementations own
// their binary encoding.
type Storable interface {
	GetId() *Id
	SetId(id *Id)
	GetTypeName() string
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// StoreTypeManager maps type names to type ids, builds empty instances for
// decoding and hands out object ids.
type StoreTypeManager interface {
	CreateInstance(typeId int64) (Storable, error)
	GetTypeId(typeName string) (int64, error)
	GetTypeName(typeId int64) (string, error)
	AllocateId(item Storable) error
}

// Store is the primary store gateway. It is the source of truth for every
// entity; the search index only mirrors it.
type Store interface {
	// Save assigns an id when the item has none, then writes it. An item
	// that already carries an id overwrites the stored row.
	Save(m Storable) error
	Put(m Storable) error
	Exists(id *Id) (bool, error)
	Get(id *Id) (Storable, error)
	GetAll(typeId int64) ([]Storable, error)
	Count(typeId int64) (int64, error)
	Delete(id *Id) error
	AllocateId(item Storable) error
	AllocateBucketIfNeeded(typeName string) error

	Close() error
}
