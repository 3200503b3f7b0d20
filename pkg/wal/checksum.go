package wal

import "hash/crc32"

// castagnoliTable backs CRC32C, which modern CPUs compute with a dedicated
// instruction (SSE4.2 CRC32, ARMv8 CRC).
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CalculateCRC32 checksums data with CRC32C.
func CalculateCRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// ValidateCRC32 reports whether data matches the expected CRC32C checksum.
func ValidateCRC32(data []byte, expected uint32) bool {
	return CalculateCRC32(data) == expected
}
