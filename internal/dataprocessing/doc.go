// Package dataprocessing implements the estimation join at the heart of the
// pipeline: flow extracts are matched against provider estimates and the
// estimated columns are overwritten in place, leaving every other cell as it
// was read.
//
// # Architecture
//
// The package is organized around one Processor and three file shapes:
//
// 1. FlowsFile: the delimited flow extract, kept as raw rows so output
// preserves whatever the join did not touch
// 2. EstimateSet: the provider estimates indexed by (contract, payment date)
// 3. ReportFile: the R5 regulatory report whose cupon columns are recomputed
// from the updated flows
//
// # Usage
//
//	processor := dataprocessing.NewProcessor(logger, cfg.Processing)
//
//	flows, err := processor.LoadFlows(ctx, pair.FlowsFile)
//	estimates, err := processor.LoadEstimates(ctx, pair.EstimatesFile)
//	result, err := processor.ProcessFlows(ctx, flows, estimates)
//
//	report, err := processor.LoadReport(ctx, pair.ReportFile)
//	enriched, err := processor.EnrichReport(ctx, report, result.Aggregates)
//
// # Error Handling
//
// Loading validates required columns up front and fails with a VALIDATION
// error naming the file and every missing column. Row-level problems
// (malformed rows, unusable keys, duplicate estimate keys, unmatched flow
// rows) are logged and counted by default; strict mode turns each of them
// into a typed fatal error.
//
// # Encoding
//
// Input files decode as UTF-8 with Latin-1 and Windows-1252 fallbacks, in
// that order. Everything downstream of ReadTable works on plain UTF-8 text.
package dataprocessing
