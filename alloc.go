package avcdec

// Memory is a block obtained from an Allocator.
type Memory interface {
	// Bytes returns the CPU mapping of the block.
	Bytes() []byte

	// PhysAddr returns the device-visible address, or 0 for plain memory.
	PhysAddr() uintptr

	// Free returns the block to its heap.
	Free() error
}

// Allocator hands out physically contiguous memory from a named heap.
// It backs output slots and engine working memory on hardware backends.
type Allocator interface {
	Alloc(size int) (Memory, error)
}

// Mapper locks a native graphic buffer for CPU access while it is the
// decode target. Lock returns the mapped pixels and, if the buffer has one,
// its physical address.
type Mapper interface {
	Lock(slot *OutputSlot, width, height int) (pixels []byte, phys uintptr, err error)
	Unlock(slot *OutputSlot) error
}

// heapAlignment is the granularity of contiguous heap allocations.
const heapAlignment = 4 * 1024

func alignHeap(size int) int {
	return (size + heapAlignment - 1) &^ (heapAlignment - 1)
}

// goMemory is ordinary Go heap memory with no physical address.
type goMemory []byte

func (m goMemory) Bytes() []byte     { return m }
func (m goMemory) PhysAddr() uintptr { return 0 }
func (m goMemory) Free() error       { return nil }

// goAllocator allocates goMemory. Used when no contiguous heap is configured.
type goAllocator struct{}

func (goAllocator) Alloc(size int) (Memory, error) {
	if size <= 0 {
		return nil, ErrBadParameter
	}
	return goMemory(make([]byte, size)), nil
}

// Engine working memory, sized from the macroblock grid of the active SPS.

// softwareExtraSize is the cached block every engine needs: macroblock side
// info, motion vectors and the decoded picture buffer bookkeeping.
func softwareExtraSize(width, height int, software bool) int {
	mbX, mbY := macroblocks(width, height)
	total := mbX * mbY

	size := (2+mbY)*mbX*8 + // mb info
		total*16 + // i4x4 pred modes
		total*16 + // direct
		total*24 + // nnz
		total*2*16*2*2 + // mvd
		total*4 + // slice numbers
		3*4*17 + // frame store lists
		17*(7*4+(23+150*2*17)*4+total*16*(2*2*2+1+1+4+4)+(mbX*16+48)*(mbY*16+48)*3/2) + // dpb
		total + // slice group map
		200*1024

	if software {
		size += 24 * 16 * 2 // half-pel scratch
		size += 1024 * 1024
	}
	return size + 4
}

// uncachedExtraSize is the hardware's uncached block: CABAC tables and the
// intra prediction top line.
func uncachedExtraSize(width int) int {
	mbX := (width + 15) >> 4
	return 100*40*4 + mbX*32 + 10*1024
}

// commandExtraSize is the hardware's command queue plus the stream
// ping-pong buffer.
func commandExtraSize(width, height int) int {
	mbX, mbY := macroblocks(width, height)
	return mbX*mbY*256*8*2 + 1024*1024
}
