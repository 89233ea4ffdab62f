/*
NAME
  schedule.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package modelconfig

import (
	"fmt"
	"time"
)

// Status is the outcome of checking a model's download schedule against
// the current time (spec §4.4 "Cycle scheduler").
type Status int

const (
	// NoCycle means no cycle within the lookback window is a candidate.
	NoCycle Status = iota
	// Waiting means the nearest cycle's lead time hasn't elapsed yet.
	Waiting
	// Missed means the nearest cycle's download window has closed.
	Missed
	// Ready means a cycle's download window is open right now.
	Ready
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "READY"
	case Waiting:
		return "WAITING"
	case Missed:
		return "MISSED"
	default:
		return "NO_CYCLE"
	}
}

// CheckResult is the result of CheckStatus: a status and, when a
// candidate cycle exists, the cycle time it refers to.
type CheckResult struct {
	Status    Status
	CycleTime time.Time
	// Detail carries the human-readable qualifier the upstream scheduler
	// reported alongside WAITING/MISSED, e.g. "starts in 12 mins".
	Detail string
}

// lookbackHours bounds how far back CheckStatus searches for a
// candidate cycle; 24 covers every cycle hour of a model that runs
// hourly, matching the upstream scheduler's search window.
const lookbackHours = 24

// CheckStatus walks backwards from now, hour by hour, looking for the
// nearest scheduled cycle whose download window [cycleTime+leadMinutes,
// cycleTime+leadMinutes+maxWaitMinutes] contains now. A READY window is
// returned as soon as found; failing that, the closest WAITING cycle is
// preferred over the closest MISSED one, matching the priority order
// READY > WAITING > MISSED > NO_CYCLE (spec invariant).
func (m *Model) CheckStatus(now time.Time, maxWaitMinutes int) CheckResult {
	nowHour := now.Truncate(time.Hour)

	best := CheckResult{Status: NoCycle}
	for i := 0; i < lookbackHours; i++ {
		checkTime := nowHour.Add(-time.Duration(i) * time.Hour)
		if !m.IsCycleHour(checkTime.Hour()) {
			continue
		}

		start := checkTime.Add(time.Duration(m.Schedule.LeadMinutes) * time.Minute)
		end := start.Add(time.Duration(maxWaitMinutes) * time.Minute)

		switch {
		case !now.Before(start) && !now.After(end):
			return CheckResult{Status: Ready, CycleTime: checkTime}
		case now.Before(start):
			if best.Status == NoCycle {
				waitMinutes := int(start.Sub(now).Minutes())
				best = CheckResult{
					Status:    Waiting,
					CycleTime: checkTime,
					Detail:    fmt.Sprintf("starts in %d mins", waitMinutes),
				}
			}
		default:
			if best.Status == NoCycle {
				best = CheckResult{Status: Missed, CycleTime: checkTime, Detail: "window closed"}
			}
		}
	}
	return best
}
