// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync/atomic"
	"time"

	"kws/internal/config"
)

// Detection is a label whose smoothed score crossed its rule's threshold.
type Detection struct {
	Label   string    `json:"label"`
	Score   float64   `json:"score"`
	Message string    `json:"message,omitempty"`
	Slice   uint64    `json:"slice"`
	Time    time.Time `json:"time"`
}

// Detector applies threshold rules to ready results. Rules can be swapped
// while the consumer loop is running.
type Detector struct {
	rules atomic.Pointer[[]config.DetectionRule]
}

func NewDetector(rules []config.DetectionRule) *Detector {
	d := &Detector{}
	d.SetRules(rules)
	return d
}

func (d *Detector) SetRules(rules []config.DetectionRule) {
	r := append([]config.DetectionRule(nil), rules...)
	d.rules.Store(&r)
}

func (d *Detector) Rules() []config.DetectionRule {
	return *d.rules.Load()
}

// Check returns one Detection per rule whose label scored strictly above
// its threshold. Results that are not Ready never detect.
func (d *Detector) Check(res *Result) []Detection {
	if !res.Ready {
		return nil
	}
	var out []Detection
	now := time.Now()
	for _, rule := range *d.rules.Load() {
		v, ok := res.Score(rule.Label)
		if !ok || v <= rule.Threshold {
			continue
		}
		out = append(out, Detection{
			Label:   rule.Label,
			Score:   v,
			Message: rule.Message,
			Slice:   res.Slice,
			Time:    now,
		})
	}
	return out
}
