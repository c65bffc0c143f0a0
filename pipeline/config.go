// Package pipeline implements the I/O boundary (ordered writer/reader)
// and the pipeline controller: channel ownership, worker lifecycle,
// shutdown, and error fan-in.
package pipeline

import (
	"crypto/rand"
	"runtime"

	"github.com/xtls/segflow/aead"
	"github.com/xtls/segflow/codec"
	"github.com/xtls/segflow/digest"
	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/kdf"
	"github.com/xtls/segflow/wire"
)

// Strategy names the worker-fan-out discipline. It is recorded in the
// StreamHeader; the controller fans segments out the same way for every
// value.
type Strategy uint8

const (
	StrategySequential Strategy = iota
	StrategyParallel
	StrategyAuto
)

// Config is the structured configuration bundle covering every
// recognized option, with no flag/file parsing attached (that loading
// layer is a separate, out-of-scope concern).
type Config struct {
	AlgorithmProfile uint8
	CipherSuiteID    uint8
	PRFID            uint8
	CompressionID    uint8
	CompressionLevel int
	DictionaryBytes  []byte
	AADDomainID      uint8
	ChunkSize        uint32
	FrameSize        int // 0 = auto (segment.ChooseFrameSize)
	Strategy         Strategy
	DigestAlg        uint16
	MemFraction      float64
	HardCap          int
	GPUThreshold     int
	KeyID            uint64
	MasterKey        []byte
	ParallelismHint  uint16
}

// DefaultConfig returns a Config with conservative defaults:
// ChaCha20-Poly1305, HKDF-SHA256, no compression, SHA-256 digest, auto
// frame sizing, auto strategy.
func DefaultConfig() Config {
	return Config{
		AlgorithmProfile: 1,
		CipherSuiteID:    aead.SuiteChaCha20Poly1305,
		PRFID:            kdf.PRFHKDFSHA256,
		CompressionID:    codec.IDNone,
		ChunkSize:        wire.AllowedChunkSizes[0],
		Strategy:         StrategyAuto,
		DigestAlg:        digest.AlgSHA256,
		MemFraction:      0.25,
		HardCap:          64,
		GPUThreshold:     1 << 30,
		ParallelismHint:  uint16(cpuWorkers()),
	}
}

// Validate checks the config against the StreamHeader invariants
// before a stream is opened.
func (c Config) Validate() error {
	if len(c.MasterKey) == 0 {
		return errs.Protocol("config_validate", errMissingMasterKey)
	}
	allowed := false
	for _, s := range wire.AllowedChunkSizes {
		if s == c.ChunkSize {
			allowed = true
			break
		}
	}
	if !allowed {
		return errs.Protocol("config_validate", errBadChunkSize)
	}
	return nil
}

func cpuWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// inflightSegments derives the segment-level concurrency budget from
// the configured memory fraction and hard cap:
// inflight_segments = min(hard_cap, available_memory * mem_fraction /
// max_segment_size). Without a portable way to query available memory,
// this module scales cpuWorkers()*4 (cpuWorkers is runtime.NumCPU()-1,
// at least 1) by mem_fraction (floored at 0.1) and clamps to hard_cap.
func (c Config) inflightSegments() int {
	budget := int(float64(cpuWorkers()*4) * maxf(c.MemFraction, 0.1))
	if budget < 1 {
		budget = 1
	}
	if c.HardCap > 0 && budget > c.HardCap {
		budget = c.HardCap
	}
	return budget
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func randomSalt() ([16]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, errs.Pipeline("random_salt", err)
	}
	return salt, nil
}
