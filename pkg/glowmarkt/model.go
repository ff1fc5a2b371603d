package glowmarkt

import "time"

type SourceType int

const (
	SourceUnknown SourceType = iota
	SourceElectricity
	SourceGas
)

const (
	ClassifierGasConsumption         = "gas.consumption"
	ClassifierElectricityConsumption = "electricity.consumption"
)

func (t SourceType) String() string {
	switch t {
	case SourceElectricity:
		return "electricity"
	case SourceGas:
		return "gas"
	default:
		return "unknown"
	}
}

// Resource is one virtual sub-device (a utility meter) under an account.
type Resource struct {
	ID         string
	Label      string
	Classifier string
	SourceType SourceType
}

// HasConsumptionClassifier reports whether the resource carries one of the
// consumption classifiers this bridge knows how to read.
func (r Resource) HasConsumptionClassifier() bool {
	return r.Classifier == ClassifierGasConsumption ||
		r.Classifier == ClassifierElectricityConsumption
}

// Reading is the latest usage sample for a resource: a series of
// (timestamp, value) pairs plus the unit reported by the API.
type Reading struct {
	Data  [][2]float64
	Units string
	At    time.Time
}

// Value returns the first value of the series, the display value of a
// current-consumption reading. ok is false for an empty series.
func (r Reading) Value() (float64, bool) {
	if len(r.Data) == 0 {
		return 0, false
	}
	return r.Data[0][1], true
}

// Auth is the result of a successful authentication.
type Auth struct {
	Token     string
	ExpiresAt time.Time
}

func parseSourceType(apiType string) SourceType {
	switch apiType {
	case "ELEC":
		return SourceElectricity
	case "GAS":
		return SourceGas
	default:
		return SourceUnknown
	}
}
