package types

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/store"
)

const REGISTRY_INFO_TYPE_NAME string = "RegistryInfo"
const REGISTRY_ITEM_TYPE_NAME string = "RegistryItem"

// Hardcoded type and object id's
const REGISTRY_INFO_TYPE_ID int64 = 1
const REGISTRY_INFO_OBJECT_ID int64 = 1
const REGISTRY_ITEM_TYPE_ID int64 = 2

// First type id handed to a user type.
const FIRST_USER_TYPE_ID int64 = 1001

var _ Registry = (*SystemRegistry)(nil)
var _ store.StoreTypeManager = (*SystemRegistry)(nil)
var _ store.Storable = (*RegistryItem)(nil)
var _ store.Storable = (*RegistryInfo)(nil)

type RegistryInfo struct {
	Id           *store.Id `cbor:"id"`
	NextTypeId   int64     `cbor:"nextTypeId"`
	NextObjectId int64     `cbor:"nextObjectId"`
}

type RegistryItem struct {
	Id           *store.Id   `cbor:"id"`           // The id of this RegistryItem
	TypeName     string      `cbor:"typeName"`     // The type this item represents
	TypeId       int64       `cbor:"typeId"`       // The type id of TypeName
	NextObjectId int64       `cbor:"nextObjectId"` // Next object id for TypeId
	Factory      TypeFactory `cbor:"-"`
}

// SystemRegistry implements Registry on top of the store it manages. Its own
// bookkeeping lives in the RegistryInfo and RegistryItem buckets.
type SystemRegistry struct {
	mu            sync.RWMutex
	info          *RegistryInfo
	store         store.Store
	items         []*RegistryItem // all the types that we know about
	typeIdIndex   map[int64]*RegistryItem
	typeNameIndex map[string]*RegistryItem
}

func NewSystemRegistry() *SystemRegistry {
	slog.Debug("NewSystemRegistry - create registry")
	return &SystemRegistry{
		items:         make([]*RegistryItem, 0),
		typeIdIndex:   make(map[int64]*RegistryItem),
		typeNameIndex: make(map[string]*RegistryItem),
	}
}

func NewRegistryItem(typeName string, factory TypeFactory) *RegistryItem {
	return &RegistryItem{
		TypeName: typeName,
		Factory:  factory,
	}
}

// Register adds the type name and factory. Load assigns the type id that was
// persisted for this name, or a fresh one the first time the name is seen.
func (r *SystemRegistry) Register(typename string, factory TypeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.TypeName == typename {
			item.Factory = factory
			return
		}
	}
	r.items = append(r.items, NewRegistryItem(typename, factory))
}

func (r *SystemRegistry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for _, item := range r.items {
		names = append(names, item.TypeName)
	}
	return names
}

// AllocateId assigns the next object id of the item's type and persists the
// advanced counter before returning.
func (r *SystemRegistry) AllocateId(item store.Storable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return fault.ErrRegistryNotLoaded
	}

	info, found := r.typeNameIndex[item.GetTypeName()]
	if !found {
		return fault.ErrTypeNotFound
	}

	id := store.NewId(info.TypeId, info.NextObjectId)
	info.NextObjectId++

	if err := r.store.Put(info); err != nil {
		info.NextObjectId--
		slog.Debug("error saving type information", "err", err)
		return err
	}

	slog.Debug("SystemRegistry.AllocateId() - allocate id", "typeName", item.GetTypeName(), "typeId", info.TypeId, "objectId", id.ObjectId)
	item.SetId(id)
	return nil
}

// Instance creates an empty Storable of typeId for decoding.
func (r *SystemRegistry) Instance(typeId int64) (store.Storable, error) {
	// special instance for RegistryInfo and RegistryItem
	switch typeId {
	case REGISTRY_INFO_TYPE_ID:
		return &RegistryInfo{}, nil
	case REGISTRY_ITEM_TYPE_ID:
		return &RegistryItem{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	info, found := r.typeIdIndex[typeId]
	if !found {
		return nil, fault.ErrTypeNotFound
	}
	return info.Factory(), nil
}

func (r *SystemRegistry) CreateInstance(typeId int64) (store.Storable, error) {
	return r.Instance(typeId)
}

func (r *SystemRegistry) GetTypeId(typeName string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, found := r.typeNameIndex[typeName]
	if !found {
		return 0, fault.ErrTypeNotFound
	}
	return info.TypeId, nil
}

func (r *SystemRegistry) GetTypeName(typeId int64) (string, error) {
	switch typeId {
	case REGISTRY_INFO_TYPE_ID:
		return REGISTRY_INFO_TYPE_NAME, nil
	case REGISTRY_ITEM_TYPE_ID:
		return REGISTRY_ITEM_TYPE_NAME, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	info, found := r.typeIdIndex[typeId]
	if !found {
		return "", fault.ErrTypeNotFound
	}
	return info.TypeName, nil
}

// Load reads the registry info first, then every persisted RegistryItem.
// A registered type name that was persisted before gets its old type id and
// object counter back. A new name gets the next type id and a counter at 1.
func (r *SystemRegistry) Load(s store.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store = s

	if err := s.AllocateBucketIfNeeded(REGISTRY_INFO_TYPE_NAME); err != nil {
		return fmt.Errorf("allocate %s bucket: %w", REGISTRY_INFO_TYPE_NAME, err)
	}
	if err := s.AllocateBucketIfNeeded(REGISTRY_ITEM_TYPE_NAME); err != nil {
		return fmt.Errorf("allocate %s bucket: %w", REGISTRY_ITEM_TYPE_NAME, err)
	}

	infoId := store.NewId(REGISTRY_INFO_TYPE_ID, REGISTRY_INFO_OBJECT_ID)
	item, err := s.Get(infoId)
	switch {
	case errors.Is(err, fault.ErrKeyNotFound):
		slog.Debug("SystemRegistry.Load() - no registry info, creating it")
		r.info = &RegistryInfo{
			Id:           infoId,
			NextTypeId:   FIRST_USER_TYPE_ID,
			NextObjectId: 1,
		}
		if err := s.Put(r.info); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		r.info = item.(*RegistryInfo)
	}

	persisted, err := s.GetAll(REGISTRY_ITEM_TYPE_ID)
	if err != nil {
		return err
	}
	for _, t := range persisted {
		r.updateTypeInfo(t.(*RegistryItem))
	}

	for _, ri := range r.items {
		if ri.TypeId == 0 {
			if err := r.allocateNewType(s, ri); err != nil {
				return fmt.Errorf("allocate type %s: %w", ri.TypeName, err)
			}
		}
	}

	// build an index of typeId -> *RegistryItem
	r.typeIdIndex = make(map[int64]*RegistryItem, len(r.items))
	r.typeNameIndex = make(map[string]*RegistryItem, len(r.items))
	for _, ri := range r.items {
		r.typeIdIndex[ri.TypeId] = ri
		r.typeNameIndex[ri.TypeName] = ri
	}

	return nil
}

func (r *SystemRegistry) allocateNewType(s store.Store, item *RegistryItem) error {
	slog.Debug("SystemRegistry.allocateNewType() - allocate new type", "typeName", item.TypeName, "typeId", r.info.NextTypeId)

	item.TypeId = r.info.NextTypeId
	r.info.NextTypeId++

	item.Id = store.NewId(REGISTRY_ITEM_TYPE_ID, r.info.NextObjectId)
	item.NextObjectId = 1
	r.info.NextObjectId++

	if err := s.Put(item); err != nil {
		return err
	}
	return s.Put(r.info)
}

func (r *SystemRegistry) updateTypeInfo(item *RegistryItem) {
	for _, ri := range r.items {
		if ri.TypeName == item.TypeName {
			ri.Id = item.Id
			ri.TypeId = item.TypeId
			ri.NextObjectId = item.NextObjectId
			return
		}
	}
	slog.Debug("SystemRegistry.Load() - persisted type is not registered", "typeName", item.TypeName, "typeId", item.TypeId)
}

func (ri *RegistryItem) GetId() *store.Id {
	return ri.Id
}

func (ri *RegistryItem) SetId(id *store.Id) {
	ri.Id = id
}

func (ri *RegistryItem) GetTypeName() string {
	return REGISTRY_ITEM_TYPE_NAME
}

func (ri *RegistryItem) Marshal() ([]byte, error) {
	return cbor.Marshal(ri)
}

func (ri *RegistryItem) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, ri)
}

// The registry info is a singleton with a fixed id.
func (ri *RegistryInfo) GetId() *store.Id {
	return store.NewId(REGISTRY_INFO_TYPE_ID, REGISTRY_INFO_OBJECT_ID)
}

func (ri *RegistryInfo) SetId(id *store.Id) {
	// noop
}

func (ri *RegistryInfo) GetTypeName() string {
	return REGISTRY_INFO_TYPE_NAME
}

func (ri *RegistryInfo) Marshal() ([]byte, error) {
	return cbor.Marshal(ri)
}

func (ri *RegistryInfo) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, ri)
}
