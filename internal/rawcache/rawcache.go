// Package rawcache is an embedded key→raw-hex cache fronting
// ChainClient.GetRawTransactionHex, grounded on the teacher's own
// goleveldb-backed storage (pkg/core/chain/database.go). MempoolProcessor
// (C8) re-fetches the same txid's hex across process restarts; this cache
// avoids the round trip for anything already seen this database's
// lifetime.
package rawcache

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	gerrors "github.com/pkg/errors"
)

// Cache is a flat txid → raw-hex store. It is network-agnostic at the
// storage layer; callers prefix keys with the network name.
type Cache struct {
	db *leveldb.DB
}

// Open opens (or creates) a goleveldb database at path, recovering from
// corruption the same way the teacher's NewDatabase does.
func Open(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if _, denied := err.(*os.PathError); denied {
		return nil, gerrors.Wrap(err, "rawcache: open")
	}
	if err != nil {
		return nil, gerrors.Wrap(err, "rawcache: open")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func key(network, txid string) []byte {
	return []byte(network + ":" + txid)
}

// Get returns the cached hex for txid, and false if absent.
func (c *Cache) Get(network, txid string) (string, bool) {
	v, err := c.db.Get(key(network, txid), nil)
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Put stores hex for txid, overwriting any prior value.
func (c *Cache) Put(network, txid, hex string) error {
	return gerrors.Wrap(c.db.Put(key(network, txid), []byte(hex), nil), "rawcache: put")
}
