package types

import "fmt"

// ContainerType is the second field of every container header.
type ContainerType uint16

const (
	ContainerUndefined ContainerType = 0
	ContainerCommand   ContainerType = 1
	ContainerData      ContainerType = 2
	ContainerResponse  ContainerType = 3
	ContainerEvent     ContainerType = 4
)

func (c ContainerType) String() string {
	switch c {
	case ContainerCommand:
		return "command"
	case ContainerData:
		return "data"
	case ContainerResponse:
		return "response"
	case ContainerEvent:
		return "event"
	default:
		return fmt.Sprintf("container(0x%04X)", uint16(c))
	}
}

// Reserved parameter values.
const (
	// AllObjects selects every object in DeleteObject and GetObjectPropList,
	// and every property in GetObjectPropList.
	AllObjects uint32 = 0xFFFFFFFF

	// AllStorages selects every storage in GetObjectHandles/GetNumObjects.
	AllStorages uint32 = 0xFFFFFFFF

	// RootParent selects root-level objects in GetObjectHandles. In
	// SendObjectInfo both 0 and RootParent name the storage root.
	RootParent uint32 = 0xFFFFFFFF

	// AllDeviceProperties resets every device property in ResetDevicePropValue.
	AllDeviceProperties uint32 = 0xFFFFFFFF
)
