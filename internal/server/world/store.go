package world

import "sync"

// Store is the server-authoritative set of generated chunks.
type Store struct {
	mu     sync.RWMutex
	size   int
	chunks map[ChunkCoord]*ChunkData
}

// NewStore creates an empty store for chunks of the given size.
func NewStore(chunkSize int) *Store {
	return &Store{
		size:   chunkSize,
		chunks: make(map[ChunkCoord]*ChunkData),
	}
}

// ChunkSize returns the edge length of stored chunks.
func (s *Store) ChunkSize() int {
	return s.size
}

// Has reports whether the chunk has been generated.
func (s *Store) Has(c ChunkCoord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[c]
	return ok
}

// Get returns a generated chunk. The returned data must not be mutated.
func (s *Store) Get(c ChunkCoord) (*ChunkData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cd, ok := s.chunks[c]
	return cd, ok
}

// Commit stores finished chunks. An already stored chunk is kept.
func (s *Store) Commit(chunks map[ChunkCoord]*ChunkData) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for coord, cd := range chunks {
		// Double-check: another batch may have committed it first.
		if _, ok := s.chunks[coord]; ok {
			continue
		}
		s.chunks[coord] = cd
		added++
	}
	return added
}

// TileAt returns the base tile at a world position. ok is false when the
// containing chunk has not been generated.
func (s *Store) TileAt(x, y int) (TileID, bool) {
	coord, local := ChunkOf(Point{X: x, Y: y}, s.size)

	s.mu.RLock()
	cd, ok := s.chunks[coord]
	s.mu.RUnlock()
	if !ok {
		return TileAir, false
	}
	return cd.Tile(local.X, local.Y), true
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
