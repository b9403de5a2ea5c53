// Package analytics reduces engagement records into campaign rate summaries.
//
// Summarize is a pure function over a record set; the Aggregator only loads
// records and stamps the result. Rates use zero-guarded division.
package analytics
