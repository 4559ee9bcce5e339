package badger

import (
	"fmt"
	"time"
)

const (
	chunkPrefix = "chunk/"
	runPrefix   = "run/"
)

func chunkKey(articleID string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s/%08d", chunkPrefix, articleID, index))
}

// runKey sorts runs by start time.
func runKey(started time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", runPrefix, started.UTC().Format("20060102T150405.000000000Z"), id))
}
