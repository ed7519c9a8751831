package engine

import (
	"fmt"
	"math"
)

// EVSourceKind identifies which EV representation fed a calculation
type EVSourceKind string

const (
	EVSourceNone       EVSourceKind = "none"
	EVSourceLegacy     EVSourceKind = "legacy"
	EVSourceAppliances EVSourceKind = "appliances"
)

// EVSource is the EV representation chosen for a calculation. Legacy carries
// the whole-house EV block; Appliances means ev_charger appliances in the
// active source (rooms, or the whole-house map) are used. The two are never
// summed.
type EVSource struct {
	Kind   EVSourceKind
	Legacy EVChargerConfig
}

// ResolveEVSource applies the precedence rule: room-based chargers when rooms
// are in use, else the legacy EV block when enabled, else any ev_charger in the
// whole-house map. The returned warning is non-empty when a configured source
// was ignored.
func ResolveEVSource(s State) (EVSource, string) {
	if s.UsesRooms() {
		src := EVSource{Kind: EVSourceNone}
		if roomsHaveCharger(s.Rooms) {
			src.Kind = EVSourceAppliances
		}
		if s.EVEnabled {
			return src, "Whole-house EV settings are ignored because the room layout is in use; configure EV charging in a room instead"
		}
		return src, ""
	}
	if s.EVEnabled {
		src := EVSource{Kind: EVSourceLegacy, Legacy: s.EV.Charger()}
		if appliancesHaveCharger(s.Appliances) {
			return src, "Both the EV settings and an EV charger appliance are configured; only the EV settings are counted"
		}
		return src, ""
	}
	if appliancesHaveCharger(s.Appliances) {
		return EVSource{Kind: EVSourceAppliances}, ""
	}
	return EVSource{Kind: EVSourceNone}, ""
}

func roomsHaveCharger(rooms map[string]*Room) bool {
	for _, r := range rooms {
		if r != nil && appliancesHaveCharger(r.Appliances) {
			return true
		}
	}
	return false
}

func appliancesHaveCharger(m map[string]ApplianceFields) bool {
	for key, fields := range m {
		if a := ResolveAppliance(key, fields); a.Category() == CategoryEVCharger && a.Enabled() {
			return true
		}
	}
	return false
}

// item is one appliance's contribution to the day
type item struct {
	room    string
	key     string
	daily   float64
	monthly float64
	// active hours, set for appliances with known timing
	hours []int
}

// messages collects deduplicated warnings and insights
type messages struct {
	warnings []string
	insights []string
	seen     map[string]bool
}

func (m *messages) warn(format string, args ...any) {
	m.add(&m.warnings, fmt.Sprintf(format, args...))
}

func (m *messages) insight(format string, args ...any) {
	m.add(&m.insights, fmt.Sprintf(format, args...))
}

func (m *messages) add(dst *[]string, msg string) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[msg] {
		return
	}
	m.seen[msg] = true
	*dst = append(*dst, msg)
}

// calc holds the working state of a single estimate
type calc struct {
	h     Heuristics
	p     Profile
	s     State
	t     TariffSettings
	scale float64

	ev     EVSource
	items  []item
	msgs   messages
	points int

	// appliance practice flags, scored once per household
	acCold, acEfficient, ledLights, plainLights bool
	evStarts                                    []int

	total, evKWh                float64
	solarKW, solarRecoKW        float64
	solarProduced, solarUsed    float64
	net                         float64
	touOn, touOff               float64
	monthGross, monthNet        float64
	monthTOUOn, monthTOUOff     float64
	byRoom, monthByRoom, byItem map[string]float64
}

func newCalc(h Heuristics, in *Input, t TariffSettings) *calc {
	return &calc{
		h:           h,
		p:           in.Profile,
		s:           in.State,
		t:           t,
		scale:       in.Profile.SizeFactor() * in.Profile.ResidentFactor(),
		byRoom:      make(map[string]float64),
		monthByRoom: make(map[string]float64),
		byItem:      make(map[string]float64),
	}
}

// collect resolves every appliance of the authoritative source
func (c *calc) collect() {
	var warning string
	c.ev, warning = ResolveEVSource(c.s)
	if warning != "" {
		c.msgs.warn("%s", warning)
	}

	if c.s.UsesRooms() {
		for _, id := range sortedKeys(c.s.Rooms) {
			room := c.s.Rooms[id]
			if room == nil {
				continue
			}
			roomID := room.ID
			if roomID == "" {
				roomID = id
			}
			c.byRoom[roomID] += 0
			c.monthByRoom[roomID] += 0
			for _, key := range sortedKeys(room.Appliances) {
				c.add(roomID, ResolveAppliance(key, room.Appliances[key]))
			}
		}
	} else {
		for _, key := range sortedKeys(c.s.Appliances) {
			a := ResolveAppliance(key, c.s.Appliances[key])
			if a.Category() == CategoryEVCharger && c.ev.Kind == EVSourceLegacy {
				continue
			}
			c.add("", a)
		}
		if c.ev.Kind == EVSourceLegacy {
			c.add("", c.ev.Legacy)
		}
	}

	for _, it := range c.items {
		c.total += it.daily
		c.byItem[it.key] += it.daily
		if it.room != "" {
			c.byRoom[it.room] += it.daily
			c.monthByRoom[it.room] += it.monthly
		}
	}
}

func (c *calc) add(room string, a Appliance) {
	days := c.h.DaysPerMonth
	it := item{room: room, key: a.Key()}
	switch a := a.(type) {
	case EVChargerConfig:
		// vehicle energy does not scale with the household
		it.daily = a.DailyKWh()
		it.monthly = a.PerChargeKWh() * a.ChargesPerWeek * c.h.WeeksPerMonth
		if a.Enabled() {
			if !a.ValidRange() {
				c.msgs.warn("EV charge target (%.0f%%) must be above the starting charge (%.0f%%); EV energy counted as zero", a.SOCTo, a.SOCFrom)
			} else if it.daily > 0 {
				c.msgs.insight("EV charging %.0f%% → %.0f%% draws about %.1f kWh per session", a.SOCFrom, a.SOCTo, a.PerChargeKWh())
				it.hours = HoursFrom(a.StartHour, a.ChargingHours())
				c.evStarts = append(c.evStarts, a.StartHour)
			}
		}
		c.evKWh += it.daily
	case ACConfig:
		it.daily = a.DailyKWh() * c.scale
		it.monthly = it.daily * days
		if a.Enabled() && it.daily > 0 {
			it.hours = WindowHours(a.StartHour, a.EndHour)
			if a.SetTempC < 25 {
				c.acCold = true
			} else if a.SetTempC >= 26 {
				c.acEfficient = true
			}
		}
	case LightsConfig:
		it.daily = a.DailyKWh() * c.scale
		it.monthly = it.daily * days
		if a.Enabled() {
			if a.LED() {
				c.ledLights = true
			} else {
				c.plainLights = true
			}
		}
	default:
		it.daily = a.DailyKWh() * c.scale
		it.monthly = it.daily * days
	}
	c.items = append(c.items, it)
}

// practices turns appliance habits into warnings, insights and points
func (c *calc) practices() {
	if c.acCold {
		c.msgs.warn("An air conditioner is set below 25°C; 26°C uses noticeably less energy")
	}
	if c.acEfficient {
		c.points += 10
		c.msgs.insight("Air conditioning at 26°C or warmer keeps consumption down")
	}
	if c.plainLights {
		c.msgs.warn("Some lighting is not LED; switching to LED cuts lighting energy")
	} else if c.ledLights {
		c.points += 5
	}
	if c.s.TariffMode != TariffTOU || len(c.evStarts) == 0 {
		return
	}
	offPeak := true
	for _, h := range c.evStarts {
		if c.t.OnPeak.Contains(h) {
			offPeak = false
		}
	}
	if offPeak {
		c.points += 15
		c.msgs.insight("EV charging starts off-peak, the cheapest time to charge")
	} else {
		c.msgs.warn("EV charging starts during on-peak hours; start after the on-peak window to pay the off-peak rate")
	}
}

// solar nets out self-consumed production and sizes the advisor recommendation
func (c *calc) solar() {
	c.solarKW = math.Max(0, c.s.SolarKW.Or(0))
	c.solarProduced = c.solarKW * c.h.SolarYieldKWhPerKW
	c.solarUsed = math.Min(c.total, c.solarProduced*c.h.SolarSelfConsumption)
	c.net = math.Max(0, c.total-c.solarUsed)

	frac := 0.45
	switch c.p.PlayerType {
	case "adult":
		frac = 0.42
	case "kid":
		frac = 0.48
	}
	c.solarRecoKW = clamp(math.Round(c.total*frac/c.h.AdvisorKWhPerKW), 0, c.h.AdvisorMaxKW)

	if c.s.SolarMode == SolarAdvisor {
		c.msgs.insight("Solar advisor: about %.0f kW would cover your daytime load", c.solarRecoKW)
		return
	}
	if c.solarKW > 0 && c.solarRecoKW > 0 {
		if c.solarKW >= c.solarRecoKW+4 {
			c.msgs.warn("Solar capacity looks larger than your daytime load needs; a smaller system pays back sooner")
		}
		if c.solarRecoKW >= c.solarKW+4 {
			c.msgs.warn("Solar capacity looks small for your daytime load; about %.0f kW would cut the bill further", c.solarRecoKW)
		}
	}
}

// onPeakShare is the on-peak fraction assumed for load without known hours
func (c *calc) onPeakShare() float64 {
	if c.p.IsCondo() {
		return *c.h.CondoOnPeakShare
	}
	return *c.h.HouseOnPeakShare
}

// split divides net daily energy between on-peak and off-peak. Appliances with
// known hours are split by window; solar offsets them pro rata when it exceeds
// the remaining load. The rest follows the house-type share.
func (c *calc) split() {
	var timedOn, timedOff float64
	for _, it := range c.items {
		if len(it.hours) == 0 || it.daily <= 0 {
			continue
		}
		on, off := SplitHours(it.daily, it.hours, c.t.OnPeak)
		timedOn += on
		timedOff += off
	}
	timed := timedOn + timedOff
	if timed > c.net && timed > 0 {
		f := c.net / timed
		timedOn *= f
		timedOff *= f
		timed = c.net
	}
	other := math.Max(0, c.net-timed)
	c.touOn = timedOn + other*c.onPeakShare()
	c.touOff = math.Max(0, c.net-c.touOn)
}

// monthly extrapolates to a billing month. Rooms carry their own monthly
// figures (EV by weekly charge frequency); otherwise daily totals times days.
func (c *calc) monthly() {
	days := c.h.DaysPerMonth
	if c.s.UsesRooms() {
		for _, v := range c.monthByRoom {
			c.monthGross += v
		}
	} else {
		c.monthGross = c.total * days
	}
	c.monthNet = math.Max(0, c.monthGross-c.solarUsed*days)
	if c.net > 0 {
		c.monthTOUOn = c.touOn * c.monthNet / c.net
	} else {
		c.monthTOUOn = c.monthNet * c.onPeakShare()
	}
	c.monthTOUOn = math.Min(c.monthTOUOn, c.monthNet)
	c.monthTOUOff = math.Max(0, c.monthNet-c.monthTOUOn)
}

// baseline awards points for staying under the scaled daily baseline
func (c *calc) baseline() {
	base := c.h.BaselineKWhPerDay * c.scale
	if c.net < base {
		c.points += int((base - c.net) * 2)
		c.msgs.insight("Today's net usage is below the household baseline of %.1f kWh", base)
	}
}
