package weather

// codeBand is one row of the OpenWeatherMap condition-code table.
type codeBand struct {
	match     func(code int) bool
	condition Condition
}

func between(lo, hi int) func(int) bool {
	return func(code int) bool { return code >= lo && code < hi }
}

func oneOf(codes ...int) func(int) bool {
	return func(code int) bool {
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		return false
	}
}

// Order matters: the first matching band wins.
var codeBands = []codeBand{
	{between(200, 300), ConditionThunder},
	{between(300, 400), ConditionDrizzle},
	{between(500, 600), ConditionRainy},
	{between(600, 700), ConditionSnowy},
	{oneOf(701, 721, 741), ConditionFoggy},
	{oneOf(800), ConditionClear},
	{between(801, 900), ConditionCloudy},
	// tornado, tropical storm, hurricane, windy, and high wind up to hurricane
	{func(code int) bool { return oneOf(900, 901, 902, 905)(code) || code >= 957 }, ConditionStorm},
	// hail
	{oneOf(906), ConditionIcy},
}

// ClassifyCode maps an OpenWeatherMap weather condition code onto a
// Condition. Codes outside every band map to ConditionOther.
func ClassifyCode(code int) Condition {
	for _, b := range codeBands {
		if b.match(code) {
			return b.condition
		}
	}
	return ConditionOther
}
