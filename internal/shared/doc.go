// Package shared holds cross-cutting helpers that belong to no single
// pipeline layer.
//
// The testutil subpackage provides the fixture builders for the flow,
// estimate and report files the tests feed through the pipeline, and an
// in-memory slog handler for asserting on logged warnings.
package shared
