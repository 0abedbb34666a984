package types

import "fmt"

// EventCode identifies an asynchronous event container.
type EventCode uint16

const (
	EventCancelTransaction     EventCode = 0x4001
	EventObjectAdded           EventCode = 0x4002
	EventObjectRemoved         EventCode = 0x4003
	EventStoreAdded            EventCode = 0x4004
	EventStoreRemoved          EventCode = 0x4005
	EventDevicePropChanged     EventCode = 0x4006
	EventObjectInfoChanged     EventCode = 0x4007
	EventDeviceInfoChanged     EventCode = 0x4008
	EventRequestObjectTransfer EventCode = 0x4009
	EventStoreFull             EventCode = 0x400A
	EventDeviceReset           EventCode = 0x400B
	EventStorageInfoChanged    EventCode = 0x400C
	EventCaptureComplete       EventCode = 0x400D
	EventUnreportedStatus      EventCode = 0x400E

	EventObjectPropChanged       EventCode = 0xC801
	EventObjectPropDescChanged   EventCode = 0xC802
	EventObjectReferencesChanged EventCode = 0xC803
)

var eventNames = map[EventCode]string{
	EventCancelTransaction:       "CancelTransaction",
	EventObjectAdded:             "ObjectAdded",
	EventObjectRemoved:           "ObjectRemoved",
	EventStoreAdded:              "StoreAdded",
	EventStoreRemoved:            "StoreRemoved",
	EventDevicePropChanged:       "DevicePropChanged",
	EventObjectInfoChanged:       "ObjectInfoChanged",
	EventDeviceInfoChanged:       "DeviceInfoChanged",
	EventRequestObjectTransfer:   "RequestObjectTransfer",
	EventStoreFull:               "StoreFull",
	EventDeviceReset:             "DeviceReset",
	EventStorageInfoChanged:      "StorageInfoChanged",
	EventCaptureComplete:         "CaptureComplete",
	EventUnreportedStatus:        "UnreportedStatus",
	EventObjectPropChanged:       "ObjectPropChanged",
	EventObjectPropDescChanged:   "ObjectPropDescChanged",
	EventObjectReferencesChanged: "ObjectReferencesChanged",
}

func (e EventCode) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Event(0x%04X)", uint16(e))
}
