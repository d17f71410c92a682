package badger

// Key prefixes for different data types
const (
	collectionPrefix = "col"
	pointPrefix      = "pt"
	kvPrefix         = "kv"
)

// makeCollectionKey generates the key holding a collection's description.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + ":" + name)
}

// makePointPrefix generates the prefix shared by every point of a collection.
// Format: pt:collection:
func makePointPrefix(collection string) []byte {
	return []byte(pointPrefix + ":" + collection + ":")
}

// makePointKey generates the key for one point.
// Format: pt:collection:id
func makePointKey(collection, id string) []byte {
	prefix := makePointPrefix(collection)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}

// makeKVKey generates a namespaced key/value key.
// Format: kv:namespace:key
func makeKVKey(namespace string, key []byte) []byte {
	prefix := kvPrefix + ":" + namespace + ":"
	buf := make([]byte, len(prefix)+len(key))
	offset := copy(buf, prefix)
	copy(buf[offset:], key)
	return buf
}
