package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"

	"github.com/xtls/segflow/aead"
	"github.com/xtls/segflow/codec"
	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/frameworker"
	"github.com/xtls/segflow/kdf"
	"github.com/xtls/segflow/registry"
	"github.com/xtls/segflow/segment"
	"github.com/xtls/segflow/telemetry"
	"github.com/xtls/segflow/wire"
)

// Controller owns the reader, the compression stage, the segment
// worker fan-out, the ordered writer, and error fan-in. It is built
// once per stream; a Controller is not reused across streams because
// its session key and nonce prefix are stream-scoped.
type Controller struct {
	cfg      Config
	suite    aead.Suite
	codec    codec.Codec
	fw       *frameworker.Worker
	pool     *frameworker.Pool
	log      *logrus.Entry
	counters *telemetry.Counters
}

var cipherRegistry = buildCipherRegistry()
var codecRegistry = buildCodecRegistry()

func buildCipherRegistry() *registry.Registry[aead.Factory] {
	r := registry.New[aead.Factory]()
	for id, f := range aead.DefaultFactories() {
		r.Register(id, f)
	}
	return r
}

func buildCodecRegistry() *registry.Registry[codec.Codec] {
	r := registry.New[codec.Codec]()
	for id, c := range codec.DefaultCodecs() {
		r.Register(id, c)
	}
	return r
}

func newController(cfg Config, header *wire.StreamHeader) (*Controller, error) {
	factory, err := cipherRegistry.Get(cfg.CipherSuiteID)
	if err != nil {
		return nil, err
	}

	info := kdf.Info{
		Magic: header.Magic, Version: header.Version,
		CipherID: header.CipherSuiteID, PRFID: header.PRFID,
		Flags: header.Flags, KeyID: header.KeyID,
	}
	// Both shipped suites take a 32-byte key; Suite.KeySize() isn't
	// queryable before the suite exists, so the session key length is
	// fixed here rather than derived from the chosen cipher.
	sessionKey, err := kdf.DeriveSessionKey(cfg.MasterKey, header.Salt[:], info, 32)
	if err != nil {
		return nil, errs.Pipeline("derive_session_key", err)
	}

	suite, err := factory(sessionKey)
	if err != nil {
		return nil, errs.Pipeline("build_aead_suite", err)
	}

	c, err := codecRegistry.Get(cfg.CompressionID)
	if err != nil {
		return nil, err
	}

	tmpl := frameworker.FromStreamHeader(header)
	prefix := frameworker.DeriveNoncePrefix(header.Salt)
	fw := frameworker.New(suite, tmpl, prefix)

	counters := &telemetry.Counters{}
	pool := frameworker.NewPool(cpuWorkers())
	pool.SetCounters(counters)

	return &Controller{
		cfg:      cfg,
		suite:    suite,
		codec:    c,
		fw:       fw,
		pool:     pool,
		log:      logrus.WithField("component", "pipeline"),
		counters: counters,
	}, nil
}

// Close releases the controller's worker pool.
func (c *Controller) Close() { c.pool.Close() }

// EncryptStream drives the full encrypt path: build the StreamHeader
// from cfg and write it to dst, read src in ChunkSize chunks, compress (if configured),
// fan each chunk out to the segment worker bounded by inflightSegments,
// and drain results through the ordered writer into dst. Returns a
// telemetry snapshot on success, or the first error observed.
func EncryptStream(ctx context.Context, cfg Config, src io.Reader, dst io.Writer) (*telemetry.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	salt, err := randomSalt()
	if err != nil {
		return nil, err
	}
	header := &wire.StreamHeader{
		Magic:            wire.Magic,
		Version:          wire.ProtocolVersion,
		AlgorithmProfile: cfg.AlgorithmProfile,
		CipherSuiteID:    cfg.CipherSuiteID,
		PRFID:            cfg.PRFID,
		CompressionID:    cfg.CompressionID,
		Strategy:         uint8(cfg.Strategy),
		AADDomainID:      cfg.AADDomainID,
		Flags:            wire.FlagHasCRC32 | wire.FlagHasTerminator,
		ChunkSize:        cfg.ChunkSize,
		Salt:             salt,
		KeyID:            cfg.KeyID,
		ParallelismHint:  cfg.ParallelismHint,
		EncoderTimestamp: uint64(time.Now().Unix()),
	}

	ctrl, err := newController(cfg, header)
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()

	start := time.Now()
	if err := WriteStreamHeader(dst, header); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	inflight := cfg.inflightSegments()
	sem := make(chan struct{}, inflight)
	results := make(chan SegmentResult, inflight)
	var wg sync.WaitGroup

	wg.Add(1)
	g.Go(func() error {
		defer wg.Done()
		return ctrl.runEncryptReader(gctx, src, &wg, sem, results, g)
	})

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		return WriteOrdered(dst, results, ctrl.counters)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap := ctrl.counters.Snapshot(start)
	return &snap, nil
}

func (c *Controller) runEncryptReader(ctx context.Context, src io.Reader, wg *sync.WaitGroup, sem chan struct{}, results chan<- SegmentResult, g *errgroup.Group) error {
	var segmentIndex uint64
	chunk := make([]byte, c.cfg.ChunkSize)

	for {
		n, readErr := io.ReadFull(src, chunk)
		eof := readErr == io.EOF || readErr == io.ErrUnexpectedEOF
		if readErr != nil && !eof {
			return errs.IO("encrypt_read_chunk", readErr)
		}

		if n > 0 {
			data := make([]byte, n)
			copy(data, chunk[:n])
			idx := segmentIndex
			segmentIndex++
			c.counters.AddBytesIn(int64(n))

			compressed, cerr := c.codec.CompressChunk(data)
			if cerr != nil {
				return errs.Pipeline("compress_chunk", cerr)
			}

			wg.Add(1)
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Done()
				return ctx.Err()
			}
			g.Go(func() error {
				defer wg.Done()
				defer func() { <-sem }()
				return c.encryptOneSegment(idx, compressed, uint32(n), 0, results)
			})
		}

		if eof {
			finalIdx := segmentIndex
			wg.Add(1)
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Done()
				return ctx.Err()
			}
			g.Go(func() error {
				defer wg.Done()
				defer func() { <-sem }()
				return c.encryptOneSegment(finalIdx, nil, 0, wire.SegmentFlagFinal, results)
			})
			return nil
		}
	}
}

func (c *Controller) encryptOneSegment(idx uint64, plaintext []byte, compressedLen uint32, flags uint16, results chan<- SegmentResult) error {
	encSeg, err := segment.EncryptSegment(c.pool, c.fw, segment.EncryptInput{
		SegmentIndex:  idx,
		Plaintext:     plaintext,
		CompressedLen: compressedLen,
		Flags:         flags,
		FrameSize:     c.cfg.FrameSize,
		DigestAlg:     c.cfg.DigestAlg,
	})
	if err != nil {
		c.counters.AddSegmentsAborted(1)
		c.log.WithError(err).WithField("segment_index", idx).Warn("segment encrypt aborted")
		results <- SegmentResult{Err: err}
		return err
	}
	results <- SegmentResult{Encrypted: encSeg}
	return nil
}

// DecryptStream drives the full decrypt path: read the StreamHeader
// from src, read segments in wire order, fan each out to the segment
// worker bounded by inflightSegments, decompress (if configured), and
// drain results through the ordered plaintext writer into dst. Returns
// a telemetry snapshot on success, or the first error observed. A
// truncated trailing segment ends the stream cleanly at the last
// intact segment rather than returning an error.
func DecryptStream(ctx context.Context, cfg Config, src io.Reader, dst io.Writer) (*telemetry.Snapshot, error) {
	header, err := ReadStreamHeader(src)
	if err != nil {
		return nil, err
	}
	cfg.CipherSuiteID = header.CipherSuiteID
	cfg.PRFID = header.PRFID
	cfg.CompressionID = header.CompressionID
	cfg.AlgorithmProfile = header.AlgorithmProfile
	cfg.AADDomainID = header.AADDomainID
	cfg.KeyID = header.KeyID
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctrl, err := newController(cfg, header)
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()

	start := time.Now()
	inflight := cfg.inflightSegments()
	segIn := make(chan segment.DecryptInput, inflight)
	plainOut := make(chan plainResult, inflight)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ReadOrdered(src, segIn, ctrl.counters)
	})

	var wg sync.WaitGroup
	sem := make(chan struct{}, inflight)
	g.Go(func() error {
		for in := range segIn {
			in := in
			wg.Add(1)
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				wg.Done()
				return gctx.Err()
			}
			g.Go(func() error {
				defer wg.Done()
				defer func() { <-sem }()
				return ctrl.decryptOneSegment(in, plainOut)
			})
		}
		wg.Wait()
		close(plainOut)
		return nil
	})

	g.Go(func() error {
		return writeOrderedPlaintext(dst, plainOut, ctrl.counters)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap := ctrl.counters.Snapshot(start)
	return &snap, nil
}

type plainResult struct {
	segmentIndex uint64
	final        bool
	plaintext    []byte
	err          error
}

func (c *Controller) decryptOneSegment(in segment.DecryptInput, out chan<- plainResult) error {
	decSeg, err := segment.DecryptSegment(c.pool, c.fw, in)
	if err != nil {
		c.counters.AddSegmentsAborted(1)
		c.log.WithError(err).WithField("segment_index", in.Header.SegmentIndex).Warn("segment decrypt aborted")
		out <- plainResult{segmentIndex: in.Header.SegmentIndex, err: err}
		return err
	}
	if decSeg.Header.IsFinal() {
		out <- plainResult{segmentIndex: in.Header.SegmentIndex, final: true}
		return nil
	}
	compressed := joinFrames(decSeg.Frames)
	plaintext, err := c.codec.DecompressChunk(compressed)
	if err != nil {
		out <- plainResult{segmentIndex: in.Header.SegmentIndex, err: errs.Pipeline("decompress_chunk", err)}
		return err
	}
	out <- plainResult{segmentIndex: in.Header.SegmentIndex, plaintext: plaintext}
	return nil
}

func joinFrames(frames [][]byte) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// writeOrderedPlaintext mirrors WriteOrdered for the decrypt path: it
// buffers out-of-order plaintext results keyed by segment_index and
// writes dst strictly in order.
func writeOrderedPlaintext(dst io.Writer, in <-chan plainResult, counters *telemetry.Counters) error {
	pending := make(map[uint64]plainResult)
	next := uint64(0)
	var finalIndex *uint64

	for res := range in {
		if res.err != nil {
			return res.err
		}
		pending[res.segmentIndex] = res
		if res.final {
			idx := res.segmentIndex
			finalIndex = &idx
		}

		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			if len(res.plaintext) > 0 {
				if _, err := dst.Write(res.plaintext); err != nil {
					return errs.IO("write_plaintext", err)
				}
				if counters != nil {
					counters.AddBytesOut(int64(len(res.plaintext)))
				}
			}
			if counters != nil {
				counters.AddSegmentsCommitted(1)
			}
			delete(pending, next)
			if finalIndex != nil && next == *finalIndex {
				return nil
			}
			next++
		}
	}
	return nil
}
