package storage

import (
	"fmt"
)

// Key schema:
//
//	ord:<20-digit ms>:<entry uuid> -> Entry (JSON), time ordered
//	oid:<20-digit order id>        -> journal key of the entry that got it
//	snap:<name>                    -> gob snapshot (last quotes, balances)
const (
	prefixJournal  = "ord:"
	prefixOrderID  = "oid:"
	prefixSnapshot = "snap:"
)

// journalKey zero-pads the timestamp so keys sort chronologically.
func journalKey(timeMs uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixJournal, timeMs, id))
}

func orderIDKey(oid uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrderID, oid))
}

func snapshotKey(name string) []byte {
	return []byte(prefixSnapshot + name)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
