package ads

import (
	"encoding/binary"
	"fmt"
	"time"
)

// TransmissionMode selects how the target samples a device notification.
type TransmissionMode uint32

const (
	TransNoTrans        TransmissionMode = 0
	TransClientCycle    TransmissionMode = 1
	TransClientOnChange TransmissionMode = 2
	TransServerCycle    TransmissionMode = 3
	TransServerOnChange TransmissionMode = 4
)

func (m TransmissionMode) String() string {
	switch m {
	case TransNoTrans:
		return "NoTransmission"
	case TransClientCycle:
		return "ClientCycle"
	case TransClientOnChange:
		return "ClientOnChange"
	case TransServerCycle:
		return "ServerCycle"
	case TransServerOnChange:
		return "ServerOnChange"
	default:
		return fmt.Sprintf("TransmissionMode(%d)", uint32(m))
	}
}

// AddDeviceNotificationRequest registers a notification on the target.
// MaxDelay and CycleTime are in 100-nanosecond units on the wire.
type AddDeviceNotificationRequest struct {
	IndexGroup       uint32
	IndexOffset      uint32
	Length           uint32
	TransmissionMode TransmissionMode
	MaxDelay         uint32 // 100 ns units
	CycleTime        uint32 // 100 ns units
}

func (r *AddDeviceNotificationRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.TransmissionMode))
	binary.LittleEndian.PutUint32(buf[16:20], r.MaxDelay)
	binary.LittleEndian.PutUint32(buf[20:24], r.CycleTime)
	// 16 reserved bytes, zero.
	return buf, nil
}

type AddDeviceNotificationResponse struct {
	Result             uint32
	NotificationHandle uint32
}

func (r *AddDeviceNotificationResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: add notification response requires at least 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	if len(data) >= 8 {
		r.NotificationHandle = binary.LittleEndian.Uint32(data[4:8])
	}
	return nil
}

type DeleteDeviceNotificationRequest struct {
	NotificationHandle uint32
}

func (r *DeleteDeviceNotificationRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, r.NotificationHandle)
	return buf, nil
}

type DeleteDeviceNotificationResponse struct {
	Result uint32
}

func (r *DeleteDeviceNotificationResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: delete notification response requires 4 bytes, got %d", len(data))
	}
	r.Result = binary.LittleEndian.Uint32(data[0:4])
	return nil
}

// NotificationSample is one pushed value for one notification handle.
type NotificationSample struct {
	NotificationHandle uint32
	Data               []byte
}

// NotificationStamp groups the samples captured at one target timestamp.
type NotificationStamp struct {
	Timestamp uint64 // Windows FILETIME
	Samples   []NotificationSample
}

// Time converts the stamp's FILETIME to wall-clock time.
func (s *NotificationStamp) Time() time.Time {
	return FiletimeToTime(s.Timestamp)
}

// DeviceNotificationRequest is the server-push DeviceNotification frame.
type DeviceNotificationRequest struct {
	Length uint32
	Stamps []NotificationStamp
}

func (r *DeviceNotificationRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: device notification requires at least 8 bytes, got %d", len(data))
	}
	r.Length = binary.LittleEndian.Uint32(data[0:4])
	stampCount := binary.LittleEndian.Uint32(data[4:8])
	offset := 8

	r.Stamps = make([]NotificationStamp, 0, stampCount)
	for i := uint32(0); i < stampCount; i++ {
		if offset+12 > len(data) {
			return fmt.Errorf("ads: truncated notification stamp %d", i)
		}
		stamp := NotificationStamp{
			Timestamp: binary.LittleEndian.Uint64(data[offset : offset+8]),
		}
		sampleCount := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
		offset += 12

		stamp.Samples = make([]NotificationSample, 0, sampleCount)
		for j := uint32(0); j < sampleCount; j++ {
			if offset+8 > len(data) {
				return fmt.Errorf("ads: truncated notification sample %d/%d", i, j)
			}
			handle := binary.LittleEndian.Uint32(data[offset : offset+4])
			size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
			offset += 8
			if offset+int(size) > len(data) {
				return fmt.Errorf("ads: notification sample %d/%d overruns frame", i, j)
			}
			sample := NotificationSample{
				NotificationHandle: handle,
				Data:               make([]byte, size),
			}
			copy(sample.Data, data[offset:offset+int(size)])
			offset += int(size)
			stamp.Samples = append(stamp.Samples, sample)
		}
		r.Stamps = append(r.Stamps, stamp)
	}
	return nil
}

// filetimeEpochDelta is the number of 100 ns intervals between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochDelta = 116444736000000000

// FiletimeToTime converts a Windows FILETIME (100 ns ticks since 1601-01-01
// UTC) to wall-clock time.
func FiletimeToTime(ft uint64) time.Time {
	return time.Unix(0, (int64(ft)-filetimeEpochDelta)*100)
}

// TimeToFiletime converts wall-clock time to a Windows FILETIME.
func TimeToFiletime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}

// DurationTo100ns converts a duration to the 100 ns units used by
// AddDeviceNotification.
func DurationTo100ns(d time.Duration) uint32 {
	return uint32(d.Nanoseconds() / 100)
}
