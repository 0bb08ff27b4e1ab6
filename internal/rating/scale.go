package rating

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"peira/internal/timing"
)

// Status tracks where a scale is in its response lifecycle.
type Status int

const (
	StatusNotStarted Status = iota
	StatusStarted
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusFinished:
		return "finished"
	default:
		return "not_started"
	}
}

// PointerRegion identifies what a pointer event landed on.
type PointerRegion int

const (
	RegionNone PointerRegion = iota
	RegionLine
	RegionAccept
)

// PointerEvent is a pointer sample mapped onto the scale. Proportion is the
// horizontal position along the response line in [0, 1].
type PointerEvent struct {
	Proportion float64
	Region     PointerRegion
	Pressed    bool
}

// Sample is one history entry: the indicated rating (nil for skips and for
// an unplaced start) and the elapsed time when it was recorded.
type Sample struct {
	Rating *float64
	RT     time.Duration
}

// Defaults applied by NewScale for zero-valued Config fields.
const (
	DefaultLow     = 1
	DefaultHigh    = 7
	DefaultMinTime = 400 * time.Millisecond
	DefaultWidth   = 41
)

// Config describes a rating scale. The zero value plus NewScale yields the
// stock 1..7 whole-number scale with a 400ms acceptance delay and no
// timeout.
type Config struct {
	Low       int
	High      int
	Precision int // fractional sensitivity, normalized to 1, 10 or 100

	// Bounds constrains subject responses to a sub-interval of the scale.
	// Nil means the full range.
	Bounds *Bounds

	// MarkerStart pre-places the marker at a value. Nil starts unplaced.
	MarkerStart *float64

	// MinTime is how long after the first Update before a response can be
	// accepted. Zero means the default; negative disables the delay.
	MinTime time.Duration
	// MaxTime ends the trial with the currently indicated value once
	// exceeded. It must be greater than MinTime to take effect; zero
	// disables timeouts.
	MaxTime time.Duration

	AcceptKeys []string
	SkipKeys   []string
	LeftKeys   []string
	RightKeys  []string

	// SingleClick accepts immediately on placement once MinTime has
	// passed.
	SingleClick bool

	HideAcceptBox bool
	HideValue     bool

	Description string
	Labels      []string // endpoint labels, or endpoints plus middle
	Width       int

	Clock timing.Clock
}

// Scale is a bounded rating widget. Input arrives through HandleKey and
// HandlePointer, time advances through Update, and View renders the current
// state without touching any of it, so rendering alone can never register
// a response.
type Scale struct {
	low       int
	high      int
	precision int
	fmtStr    string
	bounds    Bounds

	markerStart *float64
	minTime     time.Duration
	maxTime     time.Duration
	timeoutable bool

	acceptKeys  []string
	skipKeys    []string
	leftKeys    []string
	rightKeys   []string
	respKeys    map[string]float64
	singleClick bool

	hideAcceptBox bool
	hideValue     bool
	description   string
	labels        []string
	width         int
	tickStep      int

	clock timing.Clock

	status          Status
	startedAt       time.Time
	position        float64
	placed          bool
	placedBySubject bool
	responded       bool
	skipped         bool
	timedOut        bool
	decisionRT      time.Duration
	history         []Sample

	cachedView string
	cacheValid bool

	styles scaleStyles
}

func NewScale(cfg Config) (*Scale, error) {
	low, high := cfg.Low, cfg.High
	if low == 0 && high == 0 {
		low, high = DefaultLow, DefaultHigh
	}
	if high <= low {
		return nil, errors.New("high anchor must be greater than low anchor")
	}

	precision := normalizePrecision(cfg.Precision)

	bounds := Bounds{Lower: float64(low), Upper: float64(high)}
	if cfg.Bounds != nil {
		if cfg.Bounds.Lower > cfg.Bounds.Upper {
			return nil, errors.New("lower bound exceeds upper bound")
		}
		bounds = *cfg.Bounds
	}
	if bounds.Lower < float64(low) {
		bounds.Lower = float64(low)
	}
	if bounds.Upper > float64(high) {
		bounds.Upper = float64(high)
	}
	// Align the bounds inward to the precision grid so clamped values are
	// always selectable.
	p := float64(precision)
	bounds.Lower = math.Ceil(bounds.Lower*p) / p
	bounds.Upper = math.Floor(bounds.Upper*p) / p
	if bounds.Lower > bounds.Upper {
		return nil, errors.New("bounds leave no selectable value")
	}

	minTime := cfg.MinTime
	if minTime == 0 {
		minTime = DefaultMinTime
	}
	if minTime < 0 {
		minTime = 0
	}
	maxTime := cfg.MaxTime
	if maxTime < 0 {
		maxTime = 0
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timing.SystemClock{}
	}

	width := cfg.Width
	if width < 2*(high-low)+1 || width < 11 {
		width = DefaultWidth
	}

	description := cfg.Description
	if description == "" {
		description = defaultDescription(low, high)
	}

	s := &Scale{
		low:           low,
		high:          high,
		precision:     precision,
		fmtStr:        fmtForPrecision(precision),
		bounds:        bounds,
		markerStart:   copyFloat(cfg.MarkerStart),
		minTime:       minTime,
		maxTime:       maxTime,
		timeoutable:   maxTime > minTime,
		acceptKeys:    keysOrDefault(cfg.AcceptKeys, "return"),
		skipKeys:      keysOrDefault(cfg.SkipKeys, "tab"),
		leftKeys:      keysOrDefault(cfg.LeftKeys, "left"),
		rightKeys:     keysOrDefault(cfg.RightKeys, "right"),
		singleClick:   cfg.SingleClick,
		hideAcceptBox: cfg.HideAcceptBox,
		hideValue:     cfg.HideValue,
		description:   description,
		labels:        append([]string(nil), cfg.Labels...),
		width:         width,
		tickStep:      tickStepFor(low, high),
		clock:         clock,
		styles:        defaultScaleStyles(),
	}
	s.respKeys = buildRespKeys(low, high, s.acceptKeys, s.skipKeys, s.leftKeys, s.rightKeys)
	s.Reset()
	return s, nil
}

// Update advances trial time. The first call starts the response clock;
// later calls apply the timeout once MaxTime has elapsed. It returns the
// current status so callers can loop until StatusFinished.
func (s *Scale) Update() Status {
	switch s.status {
	case StatusNotStarted:
		s.status = StatusStarted
		s.startedAt = s.clock.Now()
		s.timedOut = false
		s.history = []Sample{{Rating: copyFloat(s.startRating()), RT: 0}}
		s.invalidate()
	case StatusStarted:
		if s.timeoutable && !s.responded && s.elapsed() > s.maxTime {
			s.timedOut = true
			s.skipped = !s.placed
			s.accept(s.maxTime)
		}
	}
	return s.status
}

// HandleKey processes one key press. Events are ignored before the first
// Update and after the response is in. It reports whether the key changed
// the scale.
func (s *Scale) HandleKey(key string) bool {
	if s.status != StatusStarted || s.responded {
		return false
	}
	key = strings.ToLower(strings.TrimSpace(key))

	switch {
	case containsKey(s.skipKeys, key):
		s.skipped = true
		s.accept(s.elapsed())
		return true
	case containsKey(s.leftKeys, key):
		if !s.placed {
			return false
		}
		s.place(s.position-s.step(), true)
		return true
	case containsKey(s.rightKeys, key):
		if !s.placed {
			return false
		}
		s.place(s.position+s.step(), true)
		return true
	case containsKey(s.acceptKeys, key):
		if !s.placed || !s.beyondMinTime() {
			return false
		}
		s.accept(s.elapsed())
		return true
	}

	if value, ok := s.respKeys[key]; ok {
		s.place(value, true)
		if s.singleClick && s.beyondMinTime() {
			s.accept(s.elapsed())
		}
		return true
	}
	return false
}

// HandlePointer processes one pointer sample. Presses on the line place the
// marker; presses on the accept box commit the current value once MinTime
// has passed.
func (s *Scale) HandlePointer(ev PointerEvent) bool {
	if s.status != StatusStarted || s.responded || !ev.Pressed {
		return false
	}
	switch ev.Region {
	case RegionLine:
		value := float64(s.low) + ev.Proportion*float64(s.high-s.low)
		s.place(value, true)
		if s.singleClick && s.beyondMinTime() {
			s.accept(s.elapsed())
		}
		return true
	case RegionAccept:
		if s.hideAcceptBox || !s.placed || !s.beyondMinTime() {
			return false
		}
		s.accept(s.elapsed())
		return true
	}
	return false
}

// SetMarkerPos places the marker programmatically, snapped to the
// precision grid and clamped to the scale range. Response bounds do not
// apply to experimenter placement.
func (s *Scale) SetMarkerPos(value float64) {
	if s.responded {
		return
	}
	s.position = s.clampRange(s.snap(value))
	s.placed = true
	s.invalidate()
}

// Reset restores the post-creation state so the same scale can rate the
// next item. The history is cleared and the status returns to not started.
func (s *Scale) Reset() {
	s.status = StatusNotStarted
	s.startedAt = time.Time{}
	s.responded = false
	s.skipped = false
	s.timedOut = false
	s.placedBySubject = false
	s.decisionRT = 0
	s.history = nil
	if s.markerStart != nil {
		s.position = s.clampRange(s.snap(*s.markerStart))
		s.placed = true
	} else {
		s.position = float64(s.low)
		s.placed = false
	}
	s.invalidate()
}

// Rating returns the indicated value, accepted or not. ok is false when
// nothing is placed or the response was a skip.
func (s *Scale) Rating() (float64, bool) {
	if s.skipped || !s.placed {
		return 0, false
	}
	return s.position, true
}

// RT returns the decision time once finished, or the elapsed time so far
// while the trial is running. Timed-out trials report MaxTime.
func (s *Scale) RT() (time.Duration, bool) {
	switch s.status {
	case StatusFinished:
		return s.decisionRT, true
	case StatusStarted:
		return s.elapsed(), true
	default:
		return 0, false
	}
}

// History returns a copy of the (rating, RT) samples recorded so far.
func (s *Scale) History() []Sample {
	out := make([]Sample, len(s.history))
	for i, sample := range s.history {
		out[i] = Sample{Rating: copyFloat(sample.Rating), RT: sample.RT}
	}
	return out
}

func (s *Scale) Status() Status  { return s.status }
func (s *Scale) Finished() bool  { return s.status == StatusFinished }
func (s *Scale) Responded() bool { return s.responded }
func (s *Scale) Skipped() bool   { return s.skipped }
func (s *Scale) TimedOut() bool  { return s.timedOut }
func (s *Scale) Placed() bool    { return s.placed }
func (s *Scale) Position() float64 {
	return s.position
}

// Bounds returns the effective response interval after range intersection
// and grid alignment.
func (s *Scale) Bounds() Bounds { return s.bounds }

func (s *Scale) place(value float64, bySubject bool) {
	value = s.constrain(value)
	s.position = value
	s.placed = true
	if bySubject {
		s.placedBySubject = true
		s.recordMovement()
	}
	s.invalidate()
}

func (s *Scale) accept(rt time.Duration) {
	s.responded = true
	s.decisionRT = rt
	s.status = StatusFinished
	var rating *float64
	if s.placed && !s.skipped {
		v := s.position
		rating = &v
	}
	s.history = append(s.history, Sample{Rating: rating, RT: rt})
	s.invalidate()
}

func (s *Scale) recordMovement() {
	if len(s.history) == 0 {
		return
	}
	last := s.history[len(s.history)-1]
	if last.Rating != nil && *last.Rating == s.position {
		return
	}
	v := s.position
	s.history = append(s.history, Sample{Rating: &v, RT: s.elapsed()})
}

// constrain snaps subject input to the precision grid and clamps it to the
// response bounds. The bounds are grid-aligned at construction, so the
// result is always selectable.
func (s *Scale) constrain(v float64) float64 {
	return s.bounds.Clamp(s.clampRange(s.snap(v)))
}

func (s *Scale) clampRange(v float64) float64 {
	if v < float64(s.low) {
		return float64(s.low)
	}
	if v > float64(s.high) {
		return float64(s.high)
	}
	return v
}

func (s *Scale) snap(v float64) float64 {
	p := float64(s.precision)
	return math.Round(v*p) / p
}

func (s *Scale) step() float64 {
	return 1 / float64(s.precision)
}

func (s *Scale) elapsed() time.Duration {
	return s.clock.Now().Sub(s.startedAt)
}

func (s *Scale) beyondMinTime() bool {
	return s.elapsed() > s.minTime
}

func (s *Scale) startRating() *float64 {
	if s.markerStart == nil {
		return nil
	}
	v := s.clampRange(s.snap(*s.markerStart))
	return &v
}

func (s *Scale) invalidate() {
	s.cacheValid = false
}

func normalizePrecision(p int) int {
	switch {
	case p < 10:
		return 1
	case p < 100:
		return 10
	default:
		return 100
	}
}

func fmtForPrecision(p int) string {
	switch p {
	case 10:
		return "%.1f"
	case 100:
		return "%.2f"
	default:
		return "%.0f"
	}
}

func tickStepFor(low, high int) int {
	span := high - low
	if low == 0 && span > 20 && span%10 == 0 {
		return 10
	}
	return 1
}

func keysOrDefault(keys []string, fallback string) []string {
	if len(keys) == 0 {
		return []string{fallback}
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return out
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// buildRespKeys maps digit keys onto scale values when the range fits in
// 0..9, matching the convenience of typing the rating directly. Digits
// already claimed by an action key disable the whole mapping.
func buildRespKeys(low, high int, reserved ...[]string) map[string]float64 {
	if low < 0 || high > 9 {
		return nil
	}
	taken := map[string]bool{}
	for _, set := range reserved {
		for _, k := range set {
			taken[k] = true
		}
	}
	keys := make(map[string]float64, high-low+1)
	for v := low; v <= high; v++ {
		key := string(rune('0' + v))
		if taken[key] {
			return nil
		}
		keys[key] = float64(v)
	}
	return keys
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func defaultDescription(low, high int) string {
	return strconv.Itoa(low) + " = not at all . . . extremely = " + strconv.Itoa(high)
}
