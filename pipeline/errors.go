package pipeline

import "errors"

var (
	errMissingMasterKey = errors.New("config: MasterKey must be set")
	errBadChunkSize     = errors.New("config: ChunkSize not in allowed set")
)
