// Package crawler holds the vocabulary shared by the vacancy crawler: the
// Vacancy record, listing summaries, the extraction schema, the error taxonomy
// (FetchError, ExtractionError) and the interfaces the orchestrator and the
// delivery layer depend on.
package crawler
