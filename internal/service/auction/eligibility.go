package auction

import (
	"strings"
	"time"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
)

// IsEligible decides whether a campaign may bid on a request. It is a pure
// function: no I/O, no side effects, deterministic for a fixed now.
//
// Rules are applied in order and any failure excludes the campaign: device
// match, geographic state match, question targeting, day-parting. Absent or
// malformed targeting data never excludes — a campaign with no targeting at
// all is eligible for every request.
func IsEligible(c *campaign.Campaign, req *bidrequest.BidRequest, now time.Time) bool {
	if !matchesDevice(c.Targeting.Device, req.DeviceType) {
		return false
	}
	if !matchesGeo(c.Targeting, req.Geo) {
		return false
	}
	if !matchesProfile(c.Targeting.Questions, req.Profile.Responses) {
		return false
	}
	if !matchesDayParting(c.Targeting.DayParting, now) {
		return false
	}
	return true
}

func matchesDevice(target string, device bidrequest.DeviceType) bool {
	if target == "" || target == campaign.DeviceAll {
		return true
	}
	return target == string(device)
}

// matchesGeo checks the targeted state list against the request region.
// Requests without geo data are never excluded.
func matchesGeo(t campaign.Targeting, geo *bidrequest.Geo) bool {
	states := t.StateList()
	if len(states) == 0 {
		return true
	}
	if geo == nil || geo.Region == "" {
		return true
	}
	for _, s := range states {
		if s == geo.Region {
			return true
		}
	}
	return false
}

// matchesProfile requires that for every question the user has answered and
// the campaign targets, the recorded answer is among the accepted ones.
// Questions the campaign does not target are ignored.
func matchesProfile(questions map[string][]string, responses map[string]string) bool {
	if len(questions) == 0 || len(responses) == 0 {
		return true
	}
	for questionID, answer := range responses {
		accepted, targeted := questions[questionID]
		if !targeted {
			continue
		}
		if !containsAnswer(accepted, answer) {
			return false
		}
	}
	return true
}

func containsAnswer(accepted []string, answer string) bool {
	for _, a := range accepted {
		if a == answer {
			return true
		}
	}
	return false
}

// matchesDayParting checks the hour schedule for the current local weekday.
// A weekday with no entry does not restrict.
func matchesDayParting(parting map[string][]int, now time.Time) bool {
	if len(parting) == 0 {
		return true
	}
	day := strings.ToLower(now.Weekday().String())
	hours, ok := parting[day]
	if !ok {
		return true
	}
	hour := now.Hour()
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}
