package blocks

const (
	// EntrySize is the size of one entry slot.
	EntrySize = 32

	// HeaderSize is the size of the page header.
	HeaderSize = 32

	// EntryTableOffset is the offset of the entry state table within the page.
	EntryTableOffset = HeaderSize

	// KeySize is the size of the key field in the item, including terminating NUL.
	KeySize = 16

	// MaxKeyLength is the maximum length of the key.
	MaxKeyLength = KeySize - 1

	// DataSize is the size of the inline data field of the item.
	DataSize = 8

	// EntriesPerWord is the number of entry states stored in one 32-bit word of the entry table.
	EntriesPerWord = 16

	// ErasedWord is the value of the 32-bit word on erased flash.
	ErasedWord uint32 = 0xffffffff

	// ErasedByte is the value of the byte on erased flash.
	ErasedByte byte = 0xff
)

// PageState is the state of the page stored in the first word of the header.
// Moving from one state to the next one only clears bits, so the state might be updated in place.
type PageState uint32

// Page states.
const (
	UninitializedPageState PageState = 0xffffffff
	ActivePageState                  = UninitializedPageState &^ 0x1
	FullPageState                    = ActivePageState &^ 0x2
	FreeingPageState                 = FullPageState &^ 0x4
	CorruptPageState                 = FreeingPageState &^ 0x8
	InvalidPageState       PageState = 0
)

func (s PageState) String() string {
	switch s {
	case UninitializedPageState:
		return "UNINITIALIZED"
	case ActivePageState:
		return "ACTIVE"
	case FullPageState:
		return "FULL"
	case FreeingPageState:
		return "FREEING"
	case CorruptPageState:
		return "CORRUPT"
	case InvalidPageState:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// EntryState is the 2-bit state of the entry slot.
type EntryState uint8

// Entry states.
const (
	EmptyEntryState   EntryState = 0b11
	WrittenEntryState EntryState = 0b10
	ErasedEntryState  EntryState = 0b00
	IllegalEntryState EntryState = 0b01
)

func (s EntryState) String() string {
	switch s {
	case EmptyEntryState:
		return "E"
	case WrittenEntryState:
		return "W"
	case ErasedEntryState:
		return "X"
	default:
		return "?"
	}
}

// ItemType is the type tag of the item.
type ItemType uint8

// Item types. The low nibble of the fixed-size types is the size of the value.
const (
	U8ItemType       ItemType = 0x01
	I8ItemType       ItemType = 0x11
	U16ItemType      ItemType = 0x02
	I16ItemType      ItemType = 0x12
	U32ItemType      ItemType = 0x04
	I32ItemType      ItemType = 0x14
	U64ItemType      ItemType = 0x08
	I64ItemType      ItemType = 0x18
	StringItemType   ItemType = 0x21
	BlobItemType     ItemType = 0x41
	BlobDataItemType ItemType = 0x42
	BlobIndexType    ItemType = 0x48
	AnyItemType      ItemType = 0xff
)

// IsVariableLength returns true if values of the type are stored out of line, in the entries following the item.
func (t ItemType) IsVariableLength() bool {
	return t == StringItemType || t == BlobItemType || t == BlobDataItemType
}

// Size returns the size of the inline value for fixed-size types.
func (t ItemType) Size() int {
	return int(t & 0x0f)
}

// IsValid returns true if the type might be stored.
func (t ItemType) IsValid() bool {
	switch t {
	case U8ItemType, I8ItemType, U16ItemType, I16ItemType, U32ItemType, I32ItemType, U64ItemType, I64ItemType,
		StringItemType, BlobItemType, BlobDataItemType, BlobIndexType:
		return true
	default:
		return false
	}
}

// VerOffset is the version of the blob, stored as the offset of its first chunk index.
type VerOffset uint8

// Blob versions.
const (
	Ver0Offset VerOffset = 0x00
	Ver1Offset VerOffset = 0x80
	VerAny     VerOffset = 0xff
)

const (
	// NSAny matches items in any namespace.
	NSAny uint8 = 0xff

	// ChunkAny matches any chunk index. It is also the chunk index of items which are not blob chunks.
	ChunkAny uint8 = 0xff
)

// Format versions. Versions decrease as the format evolves.
const (
	Version1 uint8 = 0xff
	Version2 uint8 = 0xfe

	// CurrentVersion is the newest format version this code understands.
	CurrentVersion = Version2
)
