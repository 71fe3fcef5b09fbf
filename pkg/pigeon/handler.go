package pigeon

import (
	"math"
	"strconv"
	"strings"
)

// Handler exposes one variable for remote get/set.
//
// Get formats the current value; an empty result means "no data". Set parses request and
// applies it. Malformed input leaves the value untouched and is never reported. The string
// returned by Set is a reply line for the requester and is normally empty.
type Handler interface {
	Get() string
	Set(request string) string
}

// Float exposes a float32.
type Float struct{ Target *float32 }

// Uint exposes a uint32.
type Uint struct{ Target *uint32 }

// Ulong exposes a uint64.
type Ulong struct{ Target *uint64 }

// Int exposes an int32.
type Int struct{ Target *int32 }

// Bool exposes a bool as "true"/"false".
type Bool struct{ Target *bool }

// Custom adapts a pair of functions. Either may be nil: a nil GetFunc reports no data and a
// nil SetFunc ignores writes.
type Custom struct {
	GetFunc func() string
	SetFunc func(request string) string
}

var (
	_ Handler = Float{}
	_ Handler = Uint{}
	_ Handler = Ulong{}
	_ Handler = Int{}
	_ Handler = Bool{}
	_ Handler = Custom{}
)

func (h Float) Get() string {
	if h.Target == nil {
		return ""
	}
	return formatFloat(*h.Target)
}

func (h Float) Set(request string) string {
	if h.Target == nil {
		return ""
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(request), 32)
	if err != nil || math.IsNaN(v) {
		return ""
	}
	*h.Target = float32(v)
	return ""
}

func (h Uint) Get() string {
	if h.Target == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*h.Target), 10)
}

func (h Uint) Set(request string) string {
	if h.Target == nil {
		return ""
	}
	v, err := strconv.ParseUint(strings.TrimSpace(request), 10, 32)
	if err != nil {
		return ""
	}
	*h.Target = uint32(v)
	return ""
}

func (h Ulong) Get() string {
	if h.Target == nil {
		return ""
	}
	return strconv.FormatUint(*h.Target, 10)
}

func (h Ulong) Set(request string) string {
	if h.Target == nil {
		return ""
	}
	v, err := strconv.ParseUint(strings.TrimSpace(request), 10, 64)
	if err != nil {
		return ""
	}
	*h.Target = v
	return ""
}

func (h Int) Get() string {
	if h.Target == nil {
		return ""
	}
	return strconv.FormatInt(int64(*h.Target), 10)
}

func (h Int) Set(request string) string {
	if h.Target == nil {
		return ""
	}
	v, err := strconv.ParseInt(strings.TrimSpace(request), 10, 32)
	if err != nil {
		return ""
	}
	*h.Target = int32(v)
	return ""
}

func (h Bool) Get() string {
	if h.Target == nil {
		return ""
	}
	return strconv.FormatBool(*h.Target)
}

func (h Bool) Set(request string) string {
	if h.Target == nil {
		return ""
	}
	v, err := strconv.ParseBool(strings.TrimSpace(request))
	if err != nil {
		return ""
	}
	*h.Target = v
	return ""
}

func (h Custom) Get() string {
	if h.GetFunc == nil {
		return ""
	}
	return h.GetFunc()
}

func (h Custom) Set(request string) string {
	if h.SetFunc == nil {
		return ""
	}
	return h.SetFunc(request)
}

// formatFloat prints the shortest representation that parses back to v, always with a
// decimal point so integral values read as floats ("42.0", not "42").
func formatFloat(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}
