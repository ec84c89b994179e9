package phase

// withinBand reports whether price sits inside [reference*(1-pct),
// reference*(1+pct)]. A zero or negative reference (no trade has printed
// yet this session) never breaches — there is nothing to compare against.
func withinBand(price, reference int64, pct float64) bool {
	if reference <= 0 {
		return true
	}
	lo := float64(reference) * (1 - pct)
	hi := float64(reference) * (1 + pct)
	f := float64(price)
	return f >= lo && f <= hi
}
