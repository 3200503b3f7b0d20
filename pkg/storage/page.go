package storage

import (
	"encoding/binary"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/types"
)

// Slotted page layout (see pkg/heap for the table-heap that chains these):
//
//	[0:4)   PrevPageID
//	[4:8)   NextPageID
//	[8:10)  SlotCount
//	[10:12) FreeSpacePointer (offset where tuple bytes start, grows down)
//	[12:16) Reserved
//	[24:...)        slot directory, 4 bytes/slot, grows up from offset 24
//	[...:PageSize)  tuple bodies, packed down from FreeSpacePointer
//
// Each slot is [offset uint16][length uint16]; length == 0 marks a
// tombstone (a deleted tuple whose slot id must not be reused, since RIDs
// referencing it may still be held by an index or an in-flight scan).
const (
	slottedHeaderSize = 24
	slotEntrySize     = 4
)

type SlottedPage struct {
	data []byte // exactly types.PageSize bytes, frame-owned
}

func WrapSlottedPage(data []byte) *SlottedPage { return &SlottedPage{data: data} }

// InitSlottedPage formats a freshly allocated page as an empty slotted page.
func InitSlottedPage(data []byte) *SlottedPage {
	for i := range data {
		data[i] = 0
	}
	p := &SlottedPage{data: data}
	p.setPrev(types.InvalidPageID)
	p.setNext(types.InvalidPageID)
	p.setSlotCount(0)
	p.setFreeSpacePointer(uint16(pageChecksumOffset))
	return p
}

func (p *SlottedPage) PrevPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p.data[0:4])))
}
func (p *SlottedPage) setPrev(id types.PageID) {
	binary.LittleEndian.PutUint32(p.data[0:4], uint32(int32(id)))
}

func (p *SlottedPage) NextPageID() types.PageID {
	return types.PageID(int32(binary.LittleEndian.Uint32(p.data[4:8])))
}
func (p *SlottedPage) setNext(id types.PageID) {
	binary.LittleEndian.PutUint32(p.data[4:8], uint32(int32(id)))
}

func (p *SlottedPage) SetLinks(prev, next types.PageID) {
	p.setPrev(prev)
	p.setNext(next)
}

func (p *SlottedPage) SlotCount() uint16 { return binary.LittleEndian.Uint16(p.data[8:10]) }
func (p *SlottedPage) setSlotCount(n uint16) {
	binary.LittleEndian.PutUint16(p.data[8:10], n)
}

func (p *SlottedPage) freeSpacePointer() uint16 { return binary.LittleEndian.Uint16(p.data[10:12]) }
func (p *SlottedPage) setFreeSpacePointer(v uint16) {
	binary.LittleEndian.PutUint16(p.data[10:12], v)
}

func (p *SlottedPage) slotOffset(slot uint16) int { return slottedHeaderSize + int(slot)*slotEntrySize }

func (p *SlottedPage) readSlot(slot uint16) (offset, length uint16) {
	o := p.slotOffset(slot)
	return binary.LittleEndian.Uint16(p.data[o : o+2]), binary.LittleEndian.Uint16(p.data[o+2 : o+4])
}

func (p *SlottedPage) writeSlot(slot uint16, offset, length uint16) {
	o := p.slotOffset(slot)
	binary.LittleEndian.PutUint16(p.data[o:o+2], offset)
	binary.LittleEndian.PutUint16(p.data[o+2:o+4], length)
}

// FreeSpace is how many bytes remain available for a new slot entry plus
// its tuple body.
func (p *SlottedPage) FreeSpace() int {
	slotDirEnd := slottedHeaderSize + int(p.SlotCount())*slotEntrySize
	return int(p.freeSpacePointer()) - slotDirEnd
}

// CanFit reports whether a tuple of tupleLen bytes fits, accounting for a
// new slot entry.
func (p *SlottedPage) CanFit(tupleLen int) bool {
	return p.FreeSpace() >= tupleLen+slotEntrySize
}

// Insert appends tuple, allocating a new slot, and returns the slot id.
func (p *SlottedPage) Insert(tuple []byte) (uint16, error) {
	if !p.CanFit(len(tuple)) {
		return 0, dberrors.New(dberrors.IOError, "slotted page: insufficient free space")
	}
	newFree := p.freeSpacePointer() - uint16(len(tuple))
	copy(p.data[newFree:], tuple)

	slot := p.SlotCount()
	p.writeSlot(slot, newFree, uint16(len(tuple)))
	p.setSlotCount(slot + 1)
	p.setFreeSpacePointer(newFree)
	return slot, nil
}

// Get returns the tuple bytes at slot, or (nil, false) if the slot is a
// tombstone or out of range.
func (p *SlottedPage) Get(slot uint16) ([]byte, bool) {
	if slot >= p.SlotCount() {
		return nil, false
	}
	off, length := p.readSlot(slot)
	if length == 0 {
		return nil, false
	}
	return p.data[off : off+length], true
}

// Delete tombstones slot (sets its length to 0) without reclaiming space
// immediately; Compact reclaims the space, and the table heap never calls it.
func (p *SlottedPage) Delete(slot uint16) error {
	if slot >= p.SlotCount() {
		return dberrors.Newf(dberrors.IOError, "slotted page: slot %d out of range", slot)
	}
	off, _ := p.readSlot(slot)
	p.writeSlot(slot, off, 0)
	return nil
}

// Update replaces the tuple at slot in place if the new tuple is no larger
// than the old one; otherwise it tombstones the old slot and the caller
// must Insert the new tuple elsewhere (the heap handles relocation).
func (p *SlottedPage) Update(slot uint16, tuple []byte) (relocated bool, err error) {
	if slot >= p.SlotCount() {
		return false, dberrors.Newf(dberrors.IOError, "slotted page: slot %d out of range", slot)
	}
	off, length := p.readSlot(slot)
	if length == 0 {
		return false, dberrors.Newf(dberrors.IOError, "slotted page: slot %d is a tombstone", slot)
	}
	if uint16(len(tuple)) <= length {
		copy(p.data[off:], tuple)
		p.writeSlot(slot, off, uint16(len(tuple)))
		return false, nil
	}
	if err := p.Delete(slot); err != nil {
		return false, err
	}
	return true, nil
}

// PutAt writes tuple at slot exactly, creating the slot if it is the next
// one to be allocated. Unlike Insert, which always appends at whatever
// slot is next, PutAt is for crash recovery redo: reproducing a logged
// operation's original slot rather than wherever space allocation would
// place it today. Redoing the same image into the same slot twice is a
// no-op in effect, since the second call finds slot < SlotCount() and
// Update leaves an identical-length tuple's bytes unchanged.
func (p *SlottedPage) PutAt(slot uint16, tuple []byte) error {
	switch {
	case slot < p.SlotCount():
		relocated, err := p.Update(slot, tuple)
		if err != nil {
			return err
		}
		if relocated {
			return dberrors.Newf(dberrors.Corruption, "slotted page: redo image for slot %d no longer fits in place", slot)
		}
		return nil
	case slot == p.SlotCount():
		_, err := p.Insert(tuple)
		return err
	default:
		return dberrors.Newf(dberrors.Corruption, "slotted page: redo target slot %d is ahead of slot count %d", slot, p.SlotCount())
	}
}

// Compact repacks live tuples against the end of the page, reclaiming space
// left behind by tombstones and shrinking updates. Slot ids are preserved.
func (p *SlottedPage) Compact() {
	count := p.SlotCount()
	type live struct {
		slot uint16
		body []byte
	}
	var tuples []live
	for s := uint16(0); s < count; s++ {
		if off, length := p.readSlot(s); length > 0 {
			body := make([]byte, length)
			copy(body, p.data[off:off+length])
			tuples = append(tuples, live{slot: s, body: body})
		}
	}

	free := uint16(pageChecksumOffset)
	for _, t := range tuples {
		free -= uint16(len(t.body))
		copy(p.data[free:], t.body)
		p.writeSlot(t.slot, free, uint16(len(t.body)))
	}
	p.setFreeSpacePointer(free)
}

// Iterate calls fn for every live (non-tombstoned) slot in slot order.
// Stops early if fn returns false.
func (p *SlottedPage) Iterate(fn func(slot uint16, tuple []byte) bool) {
	count := p.SlotCount()
	for s := uint16(0); s < count; s++ {
		if tuple, ok := p.Get(s); ok {
			if !fn(s, tuple) {
				return
			}
		}
	}
}
