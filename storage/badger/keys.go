package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	documentPrefix      = "doc"
	documentOwnerPrefix = "docws"
	taskPrefix          = "task"
	taskOwnerPrefix     = "taskusr"
	chatTurnPrefix      = "chat"
	chatTurnOwnerPrefix = "chatusr"
)

// makeRecordKey generates the primary key of a record.
// Format: prefix:id
func makeRecordKey(prefix, id string) []byte {
	return []byte(prefix + ":" + id)
}

// makeOwnerPrefix generates the partial key covering one owner's time index.
// Format: prefix:owner:
func makeOwnerPrefix(prefix, owner string) []byte {
	return []byte(prefix + ":" + owner + ":")
}

// makeOwnerKey generates a composite key ordering an owner's records by creation time.
// Format: prefix:owner:timestamp:id
func makeOwnerKey(prefix, owner string, createdAt time.Time, id string) []byte {
	ownerPrefix := makeOwnerPrefix(prefix, owner)
	buf := make([]byte, len(ownerPrefix)+8+len(id))
	offset := copy(buf, ownerPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// timestamp returns the current time at the precision records are stored with.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
