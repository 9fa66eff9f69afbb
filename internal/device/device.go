package device

import "time"

// Type classifies a device. It is fixed at construction and never changes.
type Type int

const (
	TypeController Type = iota
	TypeSensor
	TypeActuator
	TypeIOModule
	TypeProcessEquipment
	TypeNetworkDevice
)

func (t Type) String() string {
	switch t {
	case TypeController:
		return "controller"
	case TypeSensor:
		return "sensor"
	case TypeActuator:
		return "actuator"
	case TypeIOModule:
		return "io_module"
	case TypeProcessEquipment:
		return "process_equipment"
	case TypeNetworkDevice:
		return "network_device"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a device. Exactly one status holds at any
// time; transitions happen only through the lifecycle operations on Core.
type Status int

const (
	StatusOffline Status = iota
	StatusInitializing
	StatusReady
	StatusRunning
	StatusWarning
	StatusAlarm
	StatusMaintenance
	StatusFault
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusWarning:
		return "warning"
	case StatusAlarm:
		return "alarm"
	case StatusMaintenance:
		return "maintenance"
	case StatusFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Severity orders alarm importance from Information (lowest) to Critical.
type Severity int

const (
	SeverityInformation Severity = iota
	SeverityWarning
	SeverityMinor
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInformation:
		return "information"
	case SeverityWarning:
		return "warning"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Alarm is an immutable record of a notable event. Acknowledgment only flips
// the flag; the record itself is never removed from a device's list.
type Alarm struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	RaisedAt     time.Time `json:"raisedAt"`
	Acknowledged bool      `json:"acknowledged"`
	AckedBy      string    `json:"ackedBy,omitempty"`
	AckComment   string    `json:"ackComment,omitempty"`
}

// Snapshot is a read-only structured view of a device's lifecycle state.
type Snapshot struct {
	DeviceID       string        `json:"deviceId"`
	Name           string        `json:"name"`
	Type           Type          `json:"-"`
	TypeName       string        `json:"type"`
	Status         Status        `json:"-"`
	StatusName     string        `json:"status"`
	LastTransition time.Time     `json:"lastTransition"`
	OperatingTime  time.Duration `json:"operatingTime"`
	FaultCodes     []string      `json:"faultCodes,omitempty"`
	ActiveAlarms   int           `json:"activeAlarms"`
}

// Device is the uniform contract a scan driver uses to treat heterogeneous
// simulated hardware the same way. Concrete devices embed *Core and supply
// their numeric model through the Model hook.
type Device interface {
	DeviceID() string
	Name() string
	Type() Type
	Status() Status

	Initialize()
	Start() bool
	Stop() bool
	Update(elapsed time.Duration)
	SimulateFault()

	Snapshot() Snapshot
	Diagnostics() map[string]Value
	Alarms() []Alarm
	ActiveAlarms() []Alarm
	AlarmsRaised() uint64
	Acknowledge(id, by, comment string) bool
}
