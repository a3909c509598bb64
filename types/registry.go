package types

import "github.com/guyvdb/gestioneau/store"

type TypeFactory func() store.Storable

// The registry records known types, persists their type ids and allocates
// object ids.
type Registry interface {
	store.StoreTypeManager

	// Register a Storable factory under a type name. Must happen before Load.
	Register(typename string, factory TypeFactory)

	// Create a concrete type of a Storable
	Instance(typeId int64) (store.Storable, error)

	// Load persisted type ids and counters from a store, allocating ids for
	// types seen for the first time.
	Load(store store.Store) error

	// TypeNames lists the registered user types in registration order.
	TypeNames() []string
}
