package measurement

import (
	"encoding/json"
	"time"
)

// Group is one timestamped batch of readings as reported by the measurement
// provider. A scale that also takes blood pressure can produce weight and
// pressure values in the same group. Nil fields were not reported.
type Group struct {
	Timestamp  time.Time
	Weight     *float64
	FatRatio   *float64
	MuscleMass *float64
	BoneMass   *float64
	Hydration  *float64
	Systolic   *float64
	Diastolic  *float64
	HeartRate  *float64
	Height     *float64
}

// Samples splits the group into typed samples. A weight sample needs a
// weight value; a blood pressure sample needs both systolic and diastolic.
func (g Group) Samples() []Sample {
	var out []Sample
	if g.Weight != nil {
		out = append(out, Weight{
			Timestamp:        g.Timestamp,
			Kg:               *g.Weight,
			FatPercent:       g.FatRatio,
			MuscleMassKg:     g.MuscleMass,
			BoneMassKg:       g.BoneMass,
			HydrationPercent: g.Hydration,
		})
	}
	if g.Systolic != nil && g.Diastolic != nil {
		out = append(out, BloodPressure{
			Timestamp: g.Timestamp,
			Systolic:  *g.Systolic,
			Diastolic: *g.Diastolic,
			HeartRate: g.HeartRate,
		})
	}
	if g.Height != nil {
		out = append(out, Height{Timestamp: g.Timestamp, Meters: *g.Height})
	}
	return out
}

// groupJSON is the export shape. Field names match the provider's measure
// type names so exported files line up with the API documentation.
type groupJSON struct {
	Timestamp  string   `json:"timestamp"`
	Weight     *float64 `json:"weight,omitempty"`
	FatRatio   *float64 `json:"fat_ratio,omitempty"`
	MuscleMass *float64 `json:"muscle_mass,omitempty"`
	BoneMass   *float64 `json:"bone_mass,omitempty"`
	Hydration  *float64 `json:"hydration,omitempty"`
	Systolic   *float64 `json:"systolic_bp,omitempty"`
	Diastolic  *float64 `json:"diastolic_bp,omitempty"`
	HeartRate  *float64 `json:"heart_rate,omitempty"`
	Height     *float64 `json:"height,omitempty"`
}

// MarshalJSON implements json.Marshaler with an RFC 3339 timestamp.
func (g Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(groupJSON{
		Timestamp:  g.Timestamp.Format(time.RFC3339),
		Weight:     g.Weight,
		FatRatio:   g.FatRatio,
		MuscleMass: g.MuscleMass,
		BoneMass:   g.BoneMass,
		Hydration:  g.Hydration,
		Systolic:   g.Systolic,
		Diastolic:  g.Diastolic,
		HeartRate:  g.HeartRate,
		Height:     g.Height,
	})
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return err
	}
	*g = Group{
		Timestamp:  ts,
		Weight:     raw.Weight,
		FatRatio:   raw.FatRatio,
		MuscleMass: raw.MuscleMass,
		BoneMass:   raw.BoneMass,
		Hydration:  raw.Hydration,
		Systolic:   raw.Systolic,
		Diastolic:  raw.Diastolic,
		HeartRate:  raw.HeartRate,
		Height:     raw.Height,
	}
	return nil
}
