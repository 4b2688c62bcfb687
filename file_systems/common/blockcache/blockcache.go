// Package blockcache provides a small write-back cache holding a fixed number
// of blocks of a larger object, such as the sectors of a FAT.
//
// All block indices begin at 0 and are relative to the start of the object,
// not the device.
package blockcache

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/rzos/fat12fs/errors"
	c "github.com/rzos/fat12fs/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// FlushBlockCallback is a pointer to a function that writes the contents of the
// given buffer to a block in the backing storage. All restrictions and
// guarantees in [FetchBlockCallback] apply here too.
type FlushBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// SectorCache keeps up to Capacity() blocks in memory. A block is fetched the
// first time it's requested and stays resident until it's evicted to make room
// for another one. Modified blocks must be marked dirty; they're written back
// when evicted or when Flush is called, never implicitly otherwise.
//
// The slot state lives in two bitmaps: one for slots holding a block and one
// for slots whose block was modified since it was fetched.
type SectorCache struct {
	loadedSlots   bitmap.Bitmap
	dirtySlots    bitmap.Bitmap
	blocks        []c.LogicalBlock
	lastUsed      []uint64
	clock         uint64
	fetch         FetchBlockCallback
	flush         FlushBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new SectorCache.
//
//   - `capacity` is the number of blocks held in memory at once. It must be at
//     least 1.
//   - `totalBlocks` is the size of the backing object in blocks. Requests for
//     blocks outside [0, totalBlocks) fail.
//   - `fetchCb` reads a single block from the backing storage.
//   - `flushCb` writes a single block to the backing storage.
func New(
	capacity uint,
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
	flushCb FlushBlockCallback,
) *SectorCache {
	if capacity == 0 {
		capacity = 1
	}

	blocks := make([]c.LogicalBlock, capacity)
	for i := range blocks {
		blocks[i] = c.InvalidLogicalBlock
	}

	return &SectorCache{
		loadedSlots:   bitmap.New(int(capacity)),
		dirtySlots:    bitmap.New(int(capacity)),
		blocks:        blocks,
		lastUsed:      make([]uint64, capacity),
		fetch:         fetchCb,
		flush:         flushCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		data:          make([]byte, capacity*bytesPerBlock),
	}
}

// WrapStream creates a [SectorCache] over blocks stored contiguously in any
// [io.ReadWriteSeeker], beginning at byte offset `startOffset`.
func WrapStream(
	stream io.ReadWriteSeeker,
	startOffset int64,
	capacity uint,
	bytesPerBlock uint,
	totalBlocks uint,
) *SectorCache {
	seekToBlock := func(block c.LogicalBlock) error {
		offset := startOffset + int64(block)*int64(bytesPerBlock)
		_, err := stream.Seek(offset, io.SeekStart)
		return err
	}

	fetchCb := func(block c.LogicalBlock, buffer []byte) error {
		err := seekToBlock(block)
		if err != nil {
			return err
		}
		_, err = io.ReadFull(stream, buffer)
		return err
	}

	flushCb := func(block c.LogicalBlock, buffer []byte) error {
		err := seekToBlock(block)
		if err != nil {
			return err
		}
		_, err = stream.Write(buffer)
		return err
	}

	return New(capacity, bytesPerBlock, totalBlocks, fetchCb, flushCb)
}

// Capacity returns the maximum number of blocks resident at once.
func (cache *SectorCache) Capacity() uint {
	return uint(len(cache.blocks))
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *SectorCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the backing object, in blocks.
func (cache *SectorCache) TotalBlocks() uint {
	return cache.totalBlocks
}

func (cache *SectorCache) checkBounds(block c.LogicalBlock) error {
	if uint(block) >= cache.totalBlocks {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"invalid block number: %d not in range [0, %d)", block, cache.totalBlocks,
			),
		)
	}
	return nil
}

// slotOf returns the slot holding `block`, or -1 if it isn't resident.
func (cache *SectorCache) slotOf(block c.LogicalBlock) int {
	for slot, resident := range cache.blocks {
		if resident == block && cache.loadedSlots.Get(slot) {
			return slot
		}
	}
	return -1
}

func (cache *SectorCache) slotData(slot int) []byte {
	start := uint(slot) * cache.bytesPerBlock
	return cache.data[start : start+cache.bytesPerBlock]
}

// Contains returns true if `block` is resident in the cache.
func (cache *SectorCache) Contains(block c.LogicalBlock) bool {
	return cache.slotOf(block) >= 0
}

// IsDirty returns true if `block` is resident and has been modified since it
// was fetched or last flushed.
func (cache *SectorCache) IsDirty(block c.LogicalBlock) bool {
	slot := cache.slotOf(block)
	return slot >= 0 && cache.dirtySlots.Get(slot)
}

// HasDirtyBlocks returns true if any resident block needs to be written back.
func (cache *SectorCache) HasDirtyBlocks() bool {
	for slot := range cache.blocks {
		if cache.dirtySlots.Get(slot) {
			return true
		}
	}
	return false
}

// Resident returns the indices of all blocks currently held, in slot order.
func (cache *SectorCache) Resident() []c.LogicalBlock {
	resident := make([]c.LogicalBlock, 0, len(cache.blocks))
	for slot, block := range cache.blocks {
		if cache.loadedSlots.Get(slot) {
			resident = append(resident, block)
		}
	}
	return resident
}

// victim picks the slot to load a new block into: an empty slot if there is
// one, otherwise the least recently used.
func (cache *SectorCache) victim() int {
	best := 0
	for slot := range cache.blocks {
		if !cache.loadedSlots.Get(slot) {
			return slot
		}
		if cache.lastUsed[slot] < cache.lastUsed[best] {
			best = slot
		}
	}
	return best
}

// writeBack flushes a slot if it's dirty and marks it clean.
func (cache *SectorCache) writeBack(slot int) error {
	if !cache.dirtySlots.Get(slot) {
		return nil
	}

	block := cache.blocks[slot]
	err := cache.flush(block, cache.slotData(slot))
	if err != nil {
		return fmt.Errorf("failed to flush block %d to storage: %w", block, err)
	}
	cache.dirtySlots.Set(slot, false)
	return nil
}

// Get returns the cached contents of `block`, fetching it first if necessary.
// Loading a block may evict another; an evicted dirty block is written back
// before its slot is reused.
//
// The returned slice aliases the cache's storage and is only valid until the
// next call to Get. If it's modified, the block MUST be marked dirty with
// [SectorCache.MarkDirty].
func (cache *SectorCache) Get(block c.LogicalBlock) ([]byte, error) {
	err := cache.checkBounds(block)
	if err != nil {
		return nil, err
	}

	cache.clock++
	slot := cache.slotOf(block)
	if slot >= 0 {
		cache.lastUsed[slot] = cache.clock
		return cache.slotData(slot), nil
	}

	slot = cache.victim()
	if cache.loadedSlots.Get(slot) {
		err = cache.writeBack(slot)
		if err != nil {
			return nil, err
		}
	}

	// The slot is considered empty until the fetch succeeds, so a failed read
	// never leaves garbage marked as resident.
	cache.loadedSlots.Set(slot, false)
	buffer := cache.slotData(slot)
	err = cache.fetch(block, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to load block %d from source: %w", block, err)
	}

	cache.blocks[slot] = block
	cache.lastUsed[slot] = cache.clock
	cache.loadedSlots.Set(slot, true)
	cache.dirtySlots.Set(slot, false)
	return buffer, nil
}

// MarkDirty flags a resident block as modified so the next flush writes it
// out. It fails if the block isn't resident.
func (cache *SectorCache) MarkDirty(block c.LogicalBlock) error {
	slot := cache.slotOf(block)
	if slot < 0 {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block %d is not in the cache", block),
		)
	}
	cache.dirtySlots.Set(slot, true)
	return nil
}

// Flush writes out all dirty blocks (and only dirty blocks) to the underlying
// storage and marks them as clean. Blocks stay resident.
func (cache *SectorCache) Flush() error {
	for slot := range cache.blocks {
		err := cache.writeBack(slot)
		if err != nil {
			return err
		}
	}
	return nil
}

// Evict flushes `block` if it's dirty and drops it from the cache. Evicting a
// block that isn't resident does nothing.
func (cache *SectorCache) Evict(block c.LogicalBlock) error {
	slot := cache.slotOf(block)
	if slot < 0 {
		return nil
	}

	err := cache.writeBack(slot)
	if err != nil {
		return err
	}
	cache.loadedSlots.Set(slot, false)
	cache.blocks[slot] = c.InvalidLogicalBlock
	return nil
}
