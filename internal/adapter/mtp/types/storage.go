package types

// StorageType values for StorageInfo.
const (
	StorageFixedROM     uint16 = 0x0001
	StorageRemovableROM uint16 = 0x0002
	StorageFixedRAM     uint16 = 0x0003
	StorageRemovableRAM uint16 = 0x0004
)

// FilesystemType values for StorageInfo.
const (
	FilesystemGenericFlat         uint16 = 0x0001
	FilesystemGenericHierarchical uint16 = 0x0002
	FilesystemDCF                 uint16 = 0x0003
)

// AccessCapability values for StorageInfo.
const (
	AccessReadWrite        uint16 = 0x0000
	AccessReadOnlyNoDelete uint16 = 0x0001
	AccessReadOnlyDelete   uint16 = 0x0002
)

// Device identity constants advertised in DeviceInfo.
const (
	StandardVersion        uint16 = 100
	VendorExtensionID      uint32 = 0x00000006 // Microsoft
	VendorExtensionVersion uint16 = 100
	VendorExtensionDesc           = "microsoft.com: 1.0; "
)
