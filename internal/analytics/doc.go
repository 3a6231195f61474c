// Package analytics records executed searches and reports on them.
//
// Searches are queued to a buffered channel and written by a single
// background goroutine, so logging never delays or fails a search.
// Client addresses are stored only as a salted SHA-256 hash.
//
//	svc := analytics.New(store, analytics.OptionsFromConfig(cfg.Analytics), logger)
//	defer svc.Close()
//
//	svc.LogSearch(ctx, analytics.Search{Query: "cache", ResultCount: 3})
//	report, err := svc.Analytics(ctx, time.Time{}, time.Time{}, analytics.ReportOptions{Limit: 10})
//
// Prune removes rows older than the configured retention window.
package analytics
