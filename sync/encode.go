package sync

import (
	"time"

	"github.com/wgsync/wgsync/fit"
	"github.com/wgsync/wgsync/measurement"
)

// encodeFIT turns measurement groups into a complete FIT file: a file_id
// message, then per group a device_info message followed by the group's
// weight and blood pressure records. Groups must be in ascending timestamp
// order. Height samples only feed BMI derivation.
func encodeFIT(groups []measurement.Group, heightM *float64, created time.Time) ([]byte, error) {
	enc := fit.NewEncoder()
	if err := enc.WriteFileID(created); err != nil {
		return nil, err
	}

	for _, group := range groups {
		samples := recordable(group.Samples())
		if len(samples) == 0 {
			continue
		}
		if err := enc.WriteDeviceInfo(group.Timestamp); err != nil {
			return nil, err
		}
		for _, sample := range samples {
			if err := writeSample(enc, sample, heightM); err != nil {
				return nil, err
			}
		}
	}

	return enc.Finalize()
}

func writeSample(enc *fit.Encoder, sample measurement.Sample, heightM *float64) error {
	switch m := sample.(type) {
	case measurement.Weight:
		var bmi *float64
		if heightM != nil {
			if v, ok := m.BMI(*heightM); ok {
				bmi = &v
			}
		}
		return enc.WriteWeight(m, bmi)
	case measurement.BloodPressure:
		return enc.WriteBloodPressure(m)
	}
	return nil
}

func recordable(samples []measurement.Sample) []measurement.Sample {
	out := samples[:0:0]
	for _, s := range samples {
		if s.Kind() == measurement.KindHeight {
			continue
		}
		out = append(out, s)
	}
	return out
}
