// Package measurement holds the normalized, unit-converted representation of
// health readings, independent of any wire format. All values are metric:
// kilograms, meters, mmHg, bpm.
package measurement

import "time"

// Kind tags the concrete Sample variants.
type Kind int

const (
	// KindWeight is a body weight / body composition reading.
	KindWeight Kind = iota
	// KindBloodPressure is a blood pressure reading.
	KindBloodPressure
	// KindHeight is a height reading. It feeds BMI derivation and is not
	// normally emitted as its own record.
	KindHeight
)

// Sample is one reading of any kind.
type Sample interface {
	Time() time.Time
	Kind() Kind
}

// Weight is a scale reading. The body composition fields are nil when the
// scale did not report them.
type Weight struct {
	Timestamp        time.Time
	Kg               float64
	FatPercent       *float64
	MuscleMassKg     *float64
	BoneMassKg       *float64
	HydrationPercent *float64
}

// Time implements Sample.
func (w Weight) Time() time.Time { return w.Timestamp }

// Kind implements Sample.
func (w Weight) Kind() Kind { return KindWeight }

// BMI derives body mass index from this reading and a height in meters. The
// second return is false when no height is available to divide by.
func (w Weight) BMI(heightM float64) (float64, bool) {
	if heightM <= 0 {
		return 0, false
	}
	return w.Kg / (heightM * heightM), true
}

// BloodPressure is a blood pressure cuff reading. HeartRate is nil for cuffs
// that do not report pulse.
type BloodPressure struct {
	Timestamp time.Time
	Systolic  float64
	Diastolic float64
	HeartRate *float64
}

// Time implements Sample.
func (b BloodPressure) Time() time.Time { return b.Timestamp }

// Kind implements Sample.
func (b BloodPressure) Kind() Kind { return KindBloodPressure }

// Height is a height reading in meters.
type Height struct {
	Timestamp time.Time
	Meters    float64
}

// Time implements Sample.
func (h Height) Time() time.Time { return h.Timestamp }

// Kind implements Sample.
func (h Height) Kind() Kind { return KindHeight }
