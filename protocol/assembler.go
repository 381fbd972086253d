package protocol

import (
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"
)

const (
	// DefaultReassemblyTimeout bounds how long an incomplete message is kept.
	DefaultReassemblyTimeout = 30 * time.Second

	// DefaultShardCount is the default number of shards for the assembler
	DefaultShardCount = 16
)

var ErrTotalMismatch = errors.New("chunk total differs from first fragment")

// partial accumulates the fragments of one chunk ID. size never exceeds
// MaxMessageSize.
type partial struct {
	total     uint32
	parts     map[uint32][]byte
	size      int
	createdAt time.Time
}

func newPartial(total uint32, now time.Time) *partial {
	return &partial{
		total:     total,
		parts:     make(map[uint32][]byte),
		createdAt: now,
	}
}

// add records a fragment; a duplicate index overwrites the earlier copy.
// A fragment that would grow the message past MaxMessageSize is refused.
func (p *partial) add(index uint32, data []byte) error {
	size := p.size - len(p.parts[index]) + len(data)
	if size > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes buffered", ErrMessageTooLarge, size)
	}
	p.parts[index] = data
	p.size = size
	return nil
}

// checkTotal rejects chunk counts no message within MaxMessageSize can have.
func checkTotal(total uint32) error {
	if uint64(total) > MaxMessageSize {
		return fmt.Errorf("%w: %d chunks", ErrMessageTooLarge, total)
	}
	return nil
}

func (p *partial) complete() bool {
	return uint32(len(p.parts)) == p.total
}

func (p *partial) assemble() []byte {
	out := make([]byte, 0, p.size)
	for i := uint32(0); i < p.total; i++ {
		out = append(out, p.parts[i]...)
	}
	return out
}

func (p *partial) missingCount() int {
	return int(p.total) - len(p.parts)
}

// missing lists absent indices in ascending order, at most limit of them (all if limit <= 0).
func (p *partial) missing(limit int) []uint32 {
	var out []uint32
	for i := uint32(0); i < p.total; i++ {
		if _, ok := p.parts[i]; ok {
			continue
		}
		out = append(out, i)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type assemblyKey struct {
	peer    string
	chunkID string
}

type assemblerShard struct {
	mu     sync.Mutex
	groups map[assemblyKey]*partial
}

// Assembler reassembles fragmented messages arriving on a shared listening
// port. State is keyed by (peer, chunk ID) so interleaved senders never mix,
// and every key expires on its own after the reassembly timeout.
type Assembler struct {
	shards  []assemblerShard
	seed    maphash.Seed
	timeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAssembler creates an assembler and starts its expiry loop. Call Close to stop it.
func NewAssembler(shardCount int, timeout time.Duration) *Assembler {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}

	a := &Assembler{
		shards:  make([]assemblerShard, shardCount),
		seed:    maphash.MakeSeed(),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	for i := range a.shards {
		a.shards[i].groups = make(map[assemblyKey]*partial)
	}

	a.wg.Add(1)
	go a.cleanupLoop()
	return a
}

func (a *Assembler) shard(key assemblyKey) *assemblerShard {
	var h maphash.Hash
	h.SetSeed(a.seed)
	h.WriteString(key.peer)
	h.WriteByte(0)
	h.WriteString(key.chunkID)
	return &a.shards[h.Sum64()%uint64(len(a.shards))]
}

// Add records a fragment from peer. It returns the whole message once the
// last fragment arrives, and (nil, nil) while more are needed. A message
// growing past MaxMessageSize is dropped with ErrMessageTooLarge.
func (a *Assembler) Add(peer string, mp *MultiPacket) ([]byte, error) {
	if mp.ChunkIndex >= mp.TotalChunks {
		return nil, ErrInvalidChunkIndex
	}
	if err := checkTotal(mp.TotalChunks); err != nil {
		return nil, err
	}

	key := assemblyKey{peer: peer, chunkID: mp.ChunkID}
	shard := a.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	group, exists := shard.groups[key]
	if !exists {
		group = newPartial(mp.TotalChunks, time.Now())
		shard.groups[key] = group
	}
	if group.total != mp.TotalChunks {
		return nil, ErrTotalMismatch
	}

	if err := group.add(mp.ChunkIndex, mp.Data); err != nil {
		delete(shard.groups, key)
		return nil, err
	}
	if !group.complete() {
		return nil, nil
	}

	delete(shard.groups, key)
	return group.assemble(), nil
}

// Missing reports the absent indices of an in-flight message, capped at limit.
func (a *Assembler) Missing(peer, chunkID string, limit int) ([]uint32, bool) {
	key := assemblyKey{peer: peer, chunkID: chunkID}
	shard := a.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	group, ok := shard.groups[key]
	if !ok {
		return nil, false
	}
	return group.missing(limit), true
}

// Pending returns the number of incomplete messages.
func (a *Assembler) Pending() int {
	n := 0
	for i := range a.shards {
		shard := &a.shards[i]
		shard.mu.Lock()
		n += len(shard.groups)
		shard.mu.Unlock()
	}
	return n
}

// Close stops the expiry loop. Pending state is dropped.
func (a *Assembler) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

// cleanupLoop removes expired fragment groups from all shards
func (a *Assembler) cleanupLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(max(a.timeout/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case now := <-ticker.C:
			a.sweep(now)
		}
	}
}

// sweep drops every group older than the timeout and returns how many it dropped.
func (a *Assembler) sweep(now time.Time) int {
	dropped := 0
	for i := range a.shards {
		shard := &a.shards[i]
		shard.mu.Lock()
		for key, group := range shard.groups {
			if now.Sub(group.createdAt) > a.timeout {
				delete(shard.groups, key)
				dropped++
			}
		}
		shard.mu.Unlock()
	}
	return dropped
}
