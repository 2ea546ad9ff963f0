package lfs

import (
	"encoding/binary"
	"sort"
)

// pair identifies a directory's mirrored metadata block pair
type pair [2]uint32

// norm returns the pair with its members ordered, for visited-set keys
func (p pair) norm() pair {
	if p[0] > p[1] {
		return pair{p[1], p[0]}
	}
	return p
}

func parsePair(payload []byte) pair {
	return pair{
		binary.LittleEndian.Uint32(payload[0:4]),
		binary.LittleEndian.Uint32(payload[4:8]),
	}
}

// dirEntry is the folded state of one object id after replaying a
// directory's log: the newest name, kind, and structure record that
// survive for that id.
type dirEntry struct {
	id   uint16
	name string
	kind uint8 // ChunkFile, ChunkDir or ChunkSuperblock

	structChunk uint8
	inline      []byte // inline content, aliases the image
	ctzHead     uint32 // last block of the CTZ list
	ctzSize     uint32
	dirPair     pair // child metadata pair for directories
	hasStruct   bool
}

// size returns the file size recorded by the entry's structure
func (e *dirEntry) size() int64 {
	switch {
	case !e.hasStruct:
		return 0
	case e.structChunk == ChunkInlineStruct:
		return int64(len(e.inline))
	case e.structChunk == ChunkCTZStruct:
		return int64(e.ctzSize)
	default:
		return 0
	}
}

func (e *dirEntry) isDir() bool { return e.kind == ChunkDir }

// isCommitted reports whether block i holds at least one committed
// commit. An erased or half-written mirror decodes to garbage, so a
// block without a single CRC record is not trusted as a metadata log.
func (s *blockStore) isCommitted(i uint32) bool {
	if i >= s.blockCount() {
		return false
	}
	for _, rec := range decodeBlock(s.block(i), i) {
		if rec.Tag.Type() == TypeCRC {
			return true
		}
	}
	return false
}

// activeBlock selects the live member of a metadata pair: the committed
// block with the numerically greater revision counter, per the mirrored
// pair update protocol.
func (s *blockStore) activeBlock(p pair) (uint32, bool) {
	c0, c1 := s.isCommitted(p[0]), s.isCommitted(p[1])
	switch {
	case c0 && c1:
		if s.revision(p[1]) > s.revision(p[0]) {
			return p[1], true
		}
		return p[0], true
	case c0:
		return p[0], true
	case c1:
		return p[1], true
	default:
		return 0, false
	}
}

// walkLog replays a directory's metadata log into its current logical
// state: a mapping from object id to live entry. Records apply strictly
// in stream order, later records superseding earlier ones for the same
// id. A delete record is a tombstone removing the id outright; a later
// name record reintroduces it (ids are reused after compaction). Tail
// records link the next pair of a log split across blocks; the XOR
// chain is block-scoped, so each block decodes from a fresh seed.
func (f *FS) walkLog(p pair) (map[uint16]*dirEntry, error) {
	entries := make(map[uint16]*dirEntry)
	seen := map[pair]bool{}

	for {
		key := p.norm()
		if seen[key] {
			return nil, &CyclicDirectoryError{Pair: p}
		}
		seen[key] = true

		blk, ok := f.store.activeBlock(p)
		if !ok {
			// Nothing committed on either mirror; an empty log, not an
			// error, so a single corrupt directory cannot take down the
			// rest of the tree.
			return entries, nil
		}

		var tail *pair
		for _, rec := range decodeBlock(f.store.block(blk), blk) {
			id := rec.Tag.ID()
			switch rec.Tag.Type() {
			case TypeName:
				e := entries[id]
				if e == nil {
					e = &dirEntry{id: id}
					entries[id] = e
				}
				e.name = string(rec.Payload)
				e.kind = rec.Tag.Chunk()
			case TypeStruct:
				e := entries[id]
				if e == nil {
					e = &dirEntry{id: id}
					entries[id] = e
				}
				e.hasStruct = true
				e.structChunk = rec.Tag.Chunk()
				switch rec.Tag.Chunk() {
				case ChunkInlineStruct:
					e.inline = rec.Payload
				case ChunkCTZStruct:
					if len(rec.Payload) >= 8 {
						e.ctzHead = binary.LittleEndian.Uint32(rec.Payload[0:4])
						e.ctzSize = binary.LittleEndian.Uint32(rec.Payload[4:8])
					}
				case ChunkDirStruct:
					if len(rec.Payload) >= 8 {
						e.dirPair = parsePair(rec.Payload)
					}
				}
			case TypeDelete:
				delete(entries, id)
			case TypeTail:
				if len(rec.Payload) >= 8 {
					next := parsePair(rec.Payload)
					tail = &next
				}
			}
		}

		if tail == nil {
			return entries, nil
		}
		p = *tail
	}
}

// liveEntries returns a directory's entries sorted by name, with the
// superblock's own bookkeeping entry filtered out.
func (f *FS) liveEntries(p pair) ([]*dirEntry, error) {
	m, err := f.walkLog(p)
	if err != nil {
		return nil, err
	}
	entries := make([]*dirEntry, 0, len(m))
	for _, e := range m {
		if e.kind == ChunkSuperblock || e.name == "" {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

// Node is one node of the reconstructed directory tree. Children is nil
// for files and sorted by name for directories.
type Node struct {
	Name     string
	IsDir    bool
	Size     int64
	ObjectID uint16
	Children []*Node
}

// Tree rebuilds the full directory tree from the root metadata pair.
// Traversal uses an explicit worklist with a visited set rather than
// recursion, so a malformed or adversarial image that links a
// directory back into an ancestor fails with CyclicDirectoryError
// instead of looping.
func (f *FS) Tree() (*Node, error) {
	root := &Node{Name: "/", IsDir: true}

	type item struct {
		node *Node
		p    pair
	}
	work := []item{{node: root, p: rootPair}}
	visited := map[pair]bool{rootPair.norm(): true}

	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := f.liveEntries(it.p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			child := &Node{
				Name:     e.name,
				IsDir:    e.isDir(),
				Size:     e.size(),
				ObjectID: e.id,
			}
			it.node.Children = append(it.node.Children, child)
			if e.isDir() && e.hasStruct {
				key := e.dirPair.norm()
				if visited[key] {
					return nil, &CyclicDirectoryError{Pair: e.dirPair}
				}
				visited[key] = true
				work = append(work, item{node: child, p: e.dirPair})
			}
		}
	}
	return root, nil
}

// rootPair is the filesystem root directory's metadata pair. The
// superblock lives as entry 0 of the same log.
var rootPair = pair{0, 1}
