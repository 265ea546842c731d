package spelldb

// Spell durations are expressed in ticks of six seconds. Each spell record
// carries a formula number and a base value; the formula converts the base
// and the caster's level into a tick count.

const (
	// SecondsPerTick is the length of one game tick.
	SecondsPerTick = 6

	// PermanentTicks is the tick count used for "permanent" buffs (120h).
	PermanentTicks = 72000
)

// DurationSeconds computes a spell's duration in seconds for the given
// caster level. Unknown formulas fall back to returning the base tick count.
func DurationSeconds(formula, base, level int) int {
	return durationTicks(formula, base, level) * SecondsPerTick
}

func durationTicks(formula, base, level int) int {
	switch formula {
	case 0:
		return 0
	case 1, 6:
		return capTicks((level+1)/2, base)
	case 2:
		return capTicks(ceilDiv(level*3, 5), base)
	case 3:
		return capTicks(level*30, base)
	case 4:
		if base > 0 {
			return base
		}
		return 50
	case 5:
		if base > 0 {
			return base
		}
		return 3
	case 7:
		return capTicks(level, base)
	case 8:
		return capTicks(level+10, base)
	case 9:
		if base > 60 {
			return base
		}
		return capTicks(level*2+10, base)
	case 10:
		if base > 60 {
			return base
		}
		return capTicks(level*3+10, base)
	case 11, 12, 15:
		return base
	case 50:
		return PermanentTicks
	case 3600:
		if base > 0 {
			return base
		}
		return 3600
	default:
		return base
	}
}

// capTicks caps a computed tick count at base when base is set.
func capTicks(ticks, base int) int {
	if base > 0 && ticks > base {
		return base
	}
	return ticks
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
