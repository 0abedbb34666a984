package types

import "fmt"

// ObjectProperty identifies an MTP object property.
type ObjectProperty uint16

const (
	PropStorageID             ObjectProperty = 0xDC01
	PropObjectFormat          ObjectProperty = 0xDC02
	PropProtectionStatus      ObjectProperty = 0xDC03
	PropObjectSize            ObjectProperty = 0xDC04
	PropAssociationType       ObjectProperty = 0xDC05
	PropAssociationDesc       ObjectProperty = 0xDC06
	PropObjectFileName        ObjectProperty = 0xDC07
	PropDateCreated           ObjectProperty = 0xDC08
	PropDateModified          ObjectProperty = 0xDC09
	PropKeywords              ObjectProperty = 0xDC0A
	PropParentObject          ObjectProperty = 0xDC0B
	PropAllowedFolderContents ObjectProperty = 0xDC0C
	PropHidden                ObjectProperty = 0xDC0D
	PropSystemObject          ObjectProperty = 0xDC0E
	PropPersistentUID         ObjectProperty = 0xDC41
	PropSyncID                ObjectProperty = 0xDC42
	PropPropertyBag           ObjectProperty = 0xDC43
	PropName                  ObjectProperty = 0xDC44
	PropDateAdded             ObjectProperty = 0xDC4E
	PropNonConsumable         ObjectProperty = 0xDC4F
	PropDisplayName           ObjectProperty = 0xDCE0
)

var objectPropertyNames = map[ObjectProperty]string{
	PropStorageID:             "StorageID",
	PropObjectFormat:          "ObjectFormat",
	PropProtectionStatus:      "ProtectionStatus",
	PropObjectSize:            "ObjectSize",
	PropAssociationType:       "AssociationType",
	PropAssociationDesc:       "AssociationDesc",
	PropObjectFileName:        "ObjectFileName",
	PropDateCreated:           "DateCreated",
	PropDateModified:          "DateModified",
	PropKeywords:              "Keywords",
	PropParentObject:          "ParentObject",
	PropAllowedFolderContents: "AllowedFolderContents",
	PropHidden:                "Hidden",
	PropSystemObject:          "SystemObject",
	PropPersistentUID:         "PersistentUID",
	PropSyncID:                "SyncID",
	PropPropertyBag:           "PropertyBag",
	PropName:                  "Name",
	PropDateAdded:             "DateAdded",
	PropNonConsumable:         "NonConsumable",
	PropDisplayName:           "DisplayName",
}

func (p ObjectProperty) String() string {
	if name, ok := objectPropertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ObjectProperty(0x%04X)", uint16(p))
}

// DeviceProperty identifies a device property.
type DeviceProperty uint16

const (
	DevPropUndefined              DeviceProperty = 0x5000
	DevPropBatteryLevel           DeviceProperty = 0x5001
	DevPropFunctionalMode         DeviceProperty = 0x5002
	DevPropImageSize              DeviceProperty = 0x5003
	DevPropDateTime               DeviceProperty = 0x5011
	DevPropSynchronizationPartner DeviceProperty = 0xD401
	DevPropDeviceFriendlyName     DeviceProperty = 0xD402
	DevPropVolume                 DeviceProperty = 0xD403
	DevPropSupportedFormatsOrder  DeviceProperty = 0xD404
	DevPropDeviceIcon             DeviceProperty = 0xD405
	DevPropPerceivedDeviceType    DeviceProperty = 0xD407
)

var devicePropertyNames = map[DeviceProperty]string{
	DevPropUndefined:              "Undefined",
	DevPropBatteryLevel:           "BatteryLevel",
	DevPropFunctionalMode:         "FunctionalMode",
	DevPropImageSize:              "ImageSize",
	DevPropDateTime:               "DateTime",
	DevPropSynchronizationPartner: "SynchronizationPartner",
	DevPropDeviceFriendlyName:     "DeviceFriendlyName",
	DevPropVolume:                 "Volume",
	DevPropSupportedFormatsOrder:  "SupportedFormatsOrdered",
	DevPropDeviceIcon:             "DeviceIcon",
	DevPropPerceivedDeviceType:    "PerceivedDeviceType",
}

func (p DeviceProperty) String() string {
	if name, ok := devicePropertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("DeviceProperty(0x%04X)", uint16(p))
}

// Property access flags used in property descriptors.
const (
	PropGet    uint8 = 0x00
	PropGetSet uint8 = 0x01
)

// Property descriptor form flags.
const (
	FormNone  uint8 = 0x00
	FormRange uint8 = 0x01
	FormEnum  uint8 = 0x02
	FormDate  uint8 = 0x03
)

// ProtectionStatus values.
const (
	ProtectionNone     uint16 = 0x0000
	ProtectionReadOnly uint16 = 0x0001
)
