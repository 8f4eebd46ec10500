package withings

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wgsync/wgsync/measurement"
)

// Withings measure types, per the measure API documentation.
const (
	measTypeWeight     = 1
	measTypeHeight     = 4
	measTypeFatRatio   = 6
	measTypeDiastolic  = 9
	measTypeSystolic   = 10
	measTypeHeartRate  = 11
	measTypeMuscleMass = 76
	measTypeHydration  = 77
	measTypeBoneMass   = 88
)

// typeSetters routes each known measure type onto its Group field. Types
// outside this table (temperature, SpO2, ...) are skipped.
var typeSetters = map[int]func(*measurement.Group, float64){
	measTypeWeight:     func(g *measurement.Group, v float64) { g.Weight = &v },
	measTypeHeight:     func(g *measurement.Group, v float64) { g.Height = &v },
	measTypeFatRatio:   func(g *measurement.Group, v float64) { g.FatRatio = &v },
	measTypeDiastolic:  func(g *measurement.Group, v float64) { g.Diastolic = &v },
	measTypeSystolic:   func(g *measurement.Group, v float64) { g.Systolic = &v },
	measTypeHeartRate:  func(g *measurement.Group, v float64) { g.HeartRate = &v },
	measTypeMuscleMass: func(g *measurement.Group, v float64) { g.MuscleMass = &v },
	measTypeHydration:  func(g *measurement.Group, v float64) { g.Hydration = &v },
	measTypeBoneMass:   func(g *measurement.Group, v float64) { g.BoneMass = &v },
}

type measureEnvelope struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Body   struct {
		MeasureGrps []measureGroup `json:"measuregrps"`
	} `json:"body"`
}

type measureGroup struct {
	Date     int64 `json:"date"`
	Measures []struct {
		Value int64 `json:"value"`
		Type  int   `json:"type"`
		Unit  int   `json:"unit"`
	} `json:"measures"`
}

// Measurements fetches all measure groups in [from, to] and returns them in
// ascending timestamp order, as the FIT encoder requires.
func (c *Client) Measurements(ctx context.Context, from, to time.Time) ([]measurement.Group, error) {
	raw, err := c.getMeasures(ctx, url.Values{
		"category":  {"1"},
		"startdate": {strconv.FormatInt(from.Unix(), 10)},
		"enddate":   {strconv.FormatInt(to.Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}

	groups := make([]measurement.Group, 0, len(raw))
	for _, rawGroup := range raw {
		group := measurement.Group{Timestamp: time.Unix(rawGroup.Date, 0)}
		populated := false
		for _, m := range rawGroup.Measures {
			set, ok := typeSetters[m.Type]
			if !ok {
				continue
			}
			set(&group, measureValue(m.Value, m.Unit))
			populated = true
		}
		if populated {
			groups = append(groups, group)
		}
	}

	// The API returns newest first; the encoder's input contract is
	// non-decreasing timestamps.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Timestamp.Before(groups[j].Timestamp)
	})

	c.logger.Infow("retrieved measurement groups", "count", len(groups))
	return groups, nil
}

// Height returns the user's most recent height reading in meters. The
// second return is false when the account has none.
func (c *Client) Height(ctx context.Context) (float64, bool, error) {
	raw, err := c.getMeasures(ctx, url.Values{
		"category": {"1"},
		"meastype": {strconv.Itoa(measTypeHeight)},
	})
	if err != nil {
		return 0, false, err
	}

	var height float64
	var latest int64
	found := false
	for _, rawGroup := range raw {
		for _, m := range rawGroup.Measures {
			if m.Type != measTypeHeight {
				continue
			}
			if !found || rawGroup.Date > latest {
				height = measureValue(m.Value, m.Unit)
				latest = rawGroup.Date
				found = true
			}
		}
	}
	return height, found, nil
}

func (c *Client) getMeasures(ctx context.Context, form url.Values) ([]measureGroup, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	form.Set("action", "getmeas")
	form.Set("access_token", token)

	var envelope measureEnvelope
	if err := c.postForm(ctx, getmeasPath, form, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != 0 {
		return nil, errors.Errorf("measure request failed: status %d %s",
			envelope.Status, envelope.Error)
	}
	return envelope.Body.MeasureGrps, nil
}

// measureValue converts the API's (value, unit) pair to a float, where unit
// is a base-10 exponent. Values are rounded to two decimals, comfortably
// inside the FIT scale precision.
func measureValue(value int64, unit int) float64 {
	v := float64(value) * math.Pow(10, float64(unit))
	return math.Round(v*100) / 100
}

// LastSync returns the bookmark set after the previous successful upload,
// defaulting to 24 hours ago for first runs.
func (c *Client) LastSync() time.Time {
	if t, ok := c.store.lastSync(); ok {
		return t
	}
	return c.clock.Now().Add(-24 * time.Hour)
}

// SetLastSync persists the bookmark.
func (c *Client) SetLastSync(t time.Time) error {
	return c.store.setLastSync(t)
}
