// package discover builds ranked, deduplicated album lists from the upstream
// catalog: personalized recommendations, market trending, free-text search,
// and new releases.
//
// Each pipeline probes its data sources in a fixed priority order and degrades
// to progressively cruder strategies when richer ones fail, favoring returning
// something over failing outright. Failure detail is collected in a per-request
// trace that debug-mode requests receive instead of a cached payload.
package discover
