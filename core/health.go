package core

// HealthStatus is the externally tracked infection state of an agent
type HealthStatus uint8

const (
	HealthNone HealthStatus = iota
	HealthCarrier
	HealthInfected
)

func (h HealthStatus) String() string {
	switch h {
	case HealthNone:
		return "NONE"
	case HealthCarrier:
		return "CARRIER"
	case HealthInfected:
		return "INFECTED"
	}
	return "UNKNOWN"
}
