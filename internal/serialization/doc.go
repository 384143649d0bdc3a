// Package serialization saves and loads network weights in the .born format.
//
// Format structure (version 2):
//
//	[0x00-0x03: Magic "BORN"]
//	[0x04-0x07: Version (uint32 LE)]
//	[0x08-0x0B: Flags (uint32 LE)]
//	[0x0C-0x0F: Reserved]
//	[0x10-0x17: Header size (uint64 LE)]
//	[0x18-0x1F: Data size (uint64 LE)]
//	[0x20-0x3F: SHA-256 checksum of the data section]
//	[Header: JSON metadata]
//	[Padding to a 64-byte boundary]
//	[Tensor data: little-endian float64, in header order]
//
// Example usage:
//
//	// Save
//	err := serialization.WriteFile("cifar10-cnn.born", net.StateDict(), "CIFARNet", meta)
//
//	// Load
//	stateDict, header, err := serialization.ReadFile("cifar10-cnn.born")
//	err = net.LoadStateDict(stateDict)
package serialization
