package proto

import (
	"fmt"
	"strings"

	"github.com/golang/protobuf/proto"
)

// Envelope fields of the built-in content types.
const (
	FieldEmpty              int32 = 4
	FieldPingRequest        int32 = 5
	FieldPingResponse       int32 = 6
	FieldStopSession        int32 = 19
	FieldRebootRequest      int32 = 31
	FieldDeviceInfoRequest  int32 = 32
	FieldDeviceInfoResponse int32 = 33
)

func init() {
	RegisterContent(FieldEmpty, func() Content { return &Empty{} })
	RegisterContent(FieldPingRequest, func() Content { return &PingRequest{} })
	RegisterContent(FieldPingResponse, func() Content { return &PingResponse{} })
	RegisterContent(FieldStopSession, func() Content { return &StopSession{} })
	RegisterContent(FieldRebootRequest, func() Content { return &RebootRequest{} })
	RegisterContent(FieldDeviceInfoRequest, func() Content { return &DeviceInfoRequest{} })
	RegisterContent(FieldDeviceInfoResponse, func() Content { return &DeviceInfoResponse{} })

	proto.RegisterType((*Empty)(nil), "PB.Empty")
	proto.RegisterType((*StopSession)(nil), "PB.StopSession")
	proto.RegisterType((*PingRequest)(nil), "PB_System.PingRequest")
	proto.RegisterType((*PingResponse)(nil), "PB_System.PingResponse")
	proto.RegisterType((*RebootRequest)(nil), "PB_System.RebootRequest")
	proto.RegisterType((*DeviceInfoRequest)(nil), "PB_System.DeviceInfoRequest")
	proto.RegisterType((*DeviceInfoResponse)(nil), "PB_System.DeviceInfoResponse")
}

// Empty is the generic empty reply.
type Empty struct{}

func (m *Empty) Reset() { *m = Empty{} }
func (m *Empty) String() string { return proto.CompactTextString(m) }
func (*Empty) ProtoMessage() {}
func (*Empty) ContentField() int32 { return FieldEmpty }

// StopSession ends the RPC session and returns the device to its shell.
type StopSession struct{}

func (m *StopSession) Reset() { *m = StopSession{} }
func (m *StopSession) String() string { return proto.CompactTextString(m) }
func (*StopSession) ProtoMessage() {}
func (*StopSession) ContentField() int32 { return FieldStopSession }

// PingRequest asks the device to echo Data.
type PingRequest struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *PingRequest) Reset() { *m = PingRequest{} }
func (m *PingRequest) String() string { return proto.CompactTextString(m) }
func (*PingRequest) ProtoMessage() {}
func (*PingRequest) ContentField() int32 { return FieldPingRequest }

// PingResponse carries the echoed Data.
type PingResponse struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *PingResponse) Reset() { *m = PingResponse{} }
func (m *PingResponse) String() string { return proto.CompactTextString(m) }
func (*PingResponse) ProtoMessage() {}
func (*PingResponse) ContentField() int32 { return FieldPingResponse }

// RebootMode selects what the device boots into.
type RebootMode int32

// Reboot modes.
const (
	RebootModeOS     RebootMode = 0
	RebootModeDFU    RebootMode = 1
	RebootModeUpdate RebootMode = 2
)

var rebootModeNames = map[RebootMode]string{
	RebootModeOS:     "OS",
	RebootModeDFU:    "DFU",
	RebootModeUpdate: "UPDATE",
}

// String implements fmt.Stringer.
func (m RebootMode) String() string {
	if name, ok := rebootModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RebootMode(%d)", int32(m))
}

// ParseRebootMode parses a mode name, case insensitive.
func ParseRebootMode(s string) (RebootMode, error) {
	for mode, name := range rebootModeNames {
		if strings.EqualFold(name, s) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown reboot mode %q", s)
}

// RebootRequest reboots the device. No reply is sent.
type RebootRequest struct {
	Mode RebootMode `protobuf:"varint,1,opt,name=mode,proto3" json:"mode,omitempty"`
}

func (m *RebootRequest) Reset() { *m = RebootRequest{} }
func (m *RebootRequest) String() string { return proto.CompactTextString(m) }
func (*RebootRequest) ProtoMessage() {}
func (*RebootRequest) ContentField() int32 { return FieldRebootRequest }

// DeviceInfoRequest asks for device properties, answered by a stream of
// DeviceInfoResponse, one per key.
type DeviceInfoRequest struct{}

func (m *DeviceInfoRequest) Reset() { *m = DeviceInfoRequest{} }
func (m *DeviceInfoRequest) String() string { return proto.CompactTextString(m) }
func (*DeviceInfoRequest) ProtoMessage() {}
func (*DeviceInfoRequest) ContentField() int32 { return FieldDeviceInfoRequest }

// DeviceInfoResponse is one device property.
type DeviceInfoResponse struct {
	Key   string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	Value string `protobuf:"bytes,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *DeviceInfoResponse) Reset() { *m = DeviceInfoResponse{} }
func (m *DeviceInfoResponse) String() string { return proto.CompactTextString(m) }
func (*DeviceInfoResponse) ProtoMessage() {}
func (*DeviceInfoResponse) ContentField() int32 { return FieldDeviceInfoResponse }
