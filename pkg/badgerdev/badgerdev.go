package badgerdev

import (
	"encoding/binary"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/outofforest/nvs/blocks"
	"github.com/outofforest/nvs/persistence"
)

var _ persistence.Partition = &Partition{}

var layoutKey = []byte("meta:layout")

// Partition is the flash partition persisted in badger database, one key per sector.
// Sector without a key is erased.
type Partition struct {
	mu         sync.Mutex
	db         *badger.DB
	sectorSize uint32
	sectors    uint32
}

// Open opens the database stored in the directory. Empty path opens in-memory database.
// Layout of the partition is stored in the database and must match on subsequent opens.
func Open(path string, sectorSize, sectors uint32) (*Partition, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger database %q failed", path)
	}

	p := &Partition{
		db:         db,
		sectorSize: sectorSize,
		sectors:    sectors,
	}
	if err := p.checkLayout(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Size returns the byte size of the partition.
func (p *Partition) Size() uint32 {
	return p.sectorSize * p.sectors
}

// Read reads bytes from the partition.
func (p *Partition) Read(offset uint32, b []byte) error {
	if err := p.checkRange(offset, len(b)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.db.View(func(txn *badger.Txn) error {
		return p.forEachSector(offset, b, func(sector, sectorOffset uint32, chunk []byte) error {
			data, err := p.sector(txn, sector)
			if err != nil {
				return err
			}
			copy(chunk, data[sectorOffset:])
			return nil
		})
	})
}

// Write programs bytes to the partition. Bits already cleared stay cleared.
func (p *Partition) Write(offset uint32, b []byte) error {
	if err := p.checkRange(offset, len(b)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.db.Update(func(txn *badger.Txn) error {
		return p.forEachSector(offset, b, func(sector, sectorOffset uint32, chunk []byte) error {
			data, err := p.sector(txn, sector)
			if err != nil {
				return err
			}
			for i, v := range chunk {
				data[int(sectorOffset)+i] &= v
			}
			return errors.WithStack(txn.Set(sectorKey(sector), data))
		})
	})
}

// EraseRange erases sectors. Range must be aligned to sectors.
func (p *Partition) EraseRange(offset, size uint32) error {
	if offset%p.sectorSize != 0 || size%p.sectorSize != 0 {
		return errors.Errorf("range [%d, %d) is not aligned to sector size %d", offset, offset+size, p.sectorSize)
	}
	if err := p.checkRange(offset, int(size)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.db.Update(func(txn *badger.Txn) error {
		for sector := offset / p.sectorSize; sector < (offset+size)/p.sectorSize; sector++ {
			if err := txn.Delete(sectorKey(sector)); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.WithStack(p.db.Close())
}

func (p *Partition) checkLayout() error {
	layout := make([]byte, 8)
	binary.BigEndian.PutUint32(layout, p.sectorSize)
	binary.BigEndian.PutUint32(layout[4:], p.sectors)

	return p.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(layoutKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.WithStack(txn.Set(layoutKey, layout))
		}
		if err != nil {
			return errors.WithStack(err)
		}

		return item.Value(func(val []byte) error {
			if len(val) != len(layout) {
				return errors.Errorf("invalid layout record of size %d", len(val))
			}
			sectorSize := binary.BigEndian.Uint32(val)
			sectors := binary.BigEndian.Uint32(val[4:])
			if sectorSize != p.sectorSize || sectors != p.sectors {
				return errors.Errorf("database stores %d sectors of %d bytes, requested: %d sectors of %d bytes",
					sectors, sectorSize, p.sectors, p.sectorSize)
			}
			return nil
		})
	})
}

// sector returns the copy of the sector content.
func (p *Partition) sector(txn *badger.Txn, sector uint32) ([]byte, error) {
	item, err := txn.Get(sectorKey(sector))
	if errors.Is(err, badger.ErrKeyNotFound) {
		data := make([]byte, p.sectorSize)
		for i := range data {
			data[i] = blocks.ErasedByte
		}
		return data, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if uint32(len(data)) != p.sectorSize {
		return nil, errors.Errorf("sector %d has invalid size %d", sector, len(data))
	}
	return data, nil
}

// forEachSector splits the buffer into parts belonging to consecutive sectors.
func (p *Partition) forEachSector(offset uint32, b []byte, fn func(sector, sectorOffset uint32, chunk []byte) error) error {
	for len(b) > 0 {
		sector := offset / p.sectorSize
		sectorOffset := offset % p.sectorSize
		n := p.sectorSize - sectorOffset
		if n > uint32(len(b)) {
			n = uint32(len(b))
		}
		if err := fn(sector, sectorOffset, b[:n]); err != nil {
			return err
		}
		b = b[n:]
		offset += n
	}
	return nil
}

func (p *Partition) checkRange(offset uint32, size int) error {
	if int64(offset)+int64(size) > int64(p.Size()) {
		return errors.Errorf("range [%d, %d) exceeds partition size %d", offset, int64(offset)+int64(size), p.Size())
	}
	return nil
}

func sectorKey(sector uint32) []byte {
	key := make([]byte, 5)
	key[0] = 's'
	binary.BigEndian.PutUint32(key[1:], sector)
	return key
}
