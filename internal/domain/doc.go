// Package domain models parking garage occupancy as published by the
// university's parking status page.
//
// # Data Source
//
// The upstream page is a server-rendered HTML document, refreshed by the
// university every few minutes. It carries no API, no schema and no versioning;
// the only contract is the CSS class names below, which have been stable for
// several years but are not guaranteed.
//
// # Markup Conventions
//
// Each garage is rendered as a container block:
//
//	<div class="garage">
//	  <h2 class="garage__name">South Garage </h2>
//	  <p class="garage__text">
//	    <span class="garage__fullness">82 %</span>
//	  </p>
//	  <a class="garage__address" href="...">...</a>
//	</div>
//
// Name labels frequently carry trailing whitespace, so names are trimmed before
// lookup. The status paragraph is expected immediately after the name label;
// when a garage is closed or the feed is stale the paragraph is dropped
// entirely.
//
// Fill signals:
//
//	"82 %"      integer percentage of capacity in use, "%" optional,
//	            whitespace anywhere around the number
//	"Full"      garage is full; may replace the percentage or appear next to it
//	"", "N/A"   no usable signal
//
// The word "full" anywhere in the status paragraph wins over any percentage.
// Some garages are flagged full by attendants before the counters reach 100 %,
// so the text is the more current of the two signals.
//
// # Derivation
//
// Open spots are derived from the catalog capacity, never from the page:
//
//	open = round(total * (100 - percent) / 100)
//
// Rounding is half-up (1.5 -> 2). The result is clamped to [0, total] because
// the upstream occasionally reports percentages above 100 while cars queue on
// the ramps. A garage whose open count cannot be determined is reported with a
// nil Open, which is distinct from a confirmed-full zero.
//
// # Catalog
//
// Capacities come from the compiled-in [Catalog]. Garages on the page that are
// not in the catalog are ignored; this is an allow-list, not an error.
package domain
