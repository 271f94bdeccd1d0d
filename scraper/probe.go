package scraper

import "context"

// probe is one attempt at finding a price.
type probe struct {
	method Method
	run    func() (float64, bool)
}

// firstPrice runs probes in order and stops at the first one that yields a
// storable value. It gives up early once ctx is done.
func firstPrice(ctx context.Context, probes ...probe) (float64, Method, bool) {
	for _, p := range probes {
		if ctx.Err() != nil {
			return 0, "", false
		}
		if v, ok := p.run(); ok && validPrice(v) {
			return v, p.method, true
		}
	}
	return 0, "", false
}

func jsonLDProbe(s *Snapshot) probe {
	return probe{MethodJSONLD, func() (float64, bool) { return ExtractJSONLD(s) }}
}

func metaProbe(s *Snapshot) probe {
	return probe{MethodMeta, func() (float64, bool) { return ExtractMeta(s) }}
}

func nodesProbe(s *Snapshot, policy NodePolicy) probe {
	return probe{MethodPriceNodes, func() (float64, bool) { return ExtractPriceNodes(s, policy) }}
}

func visibleTextProbe(s *Snapshot) probe {
	return probe{MethodVisibleText, func() (float64, bool) { return ExtractVisibleText(s) }}
}

func rawHTMLProbe(s *Snapshot) probe {
	return probe{MethodRawHTML, func() (float64, bool) { return ExtractRawHTML(s) }}
}

// fallbackProbes is the tail shared by every strategy.
func fallbackProbes(s *Snapshot, policy NodePolicy) []probe {
	return []probe{nodesProbe(s, policy), visibleTextProbe(s), rawHTMLProbe(s)}
}
