package blocks

import (
	"hash/crc32"

	"github.com/pkg/errors"
)

// ChecksumSeed is the initial value of every checksum stored on flash.
const ChecksumSeed uint32 = 0xffffffff

// Checksum computes checksum of bytes.
func Checksum(b []byte) uint32 {
	return ChecksumUpdate(ChecksumSeed, b)
}

// ChecksumUpdate continues computation of the checksum with more bytes.
func ChecksumUpdate(checksum uint32, b []byte) uint32 {
	return crc32.Update(checksum, crc32.IEEETable, b)
}

// VerifyChecksum verifies that checksum of provided data matches the expected one.
func VerifyChecksum(p []byte, expectedChecksum uint32) error {
	checksum := Checksum(p)
	if checksum == expectedChecksum {
		return nil
	}
	return errors.Errorf("checksum mismatch, computed: %08x, expected: %08x", checksum, expectedChecksum)
}
