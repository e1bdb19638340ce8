// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report serialises a run summary to a results file.
//
// The document has a summary object and one entry per command in plan order. JSON is written by
// default, YAML when the file name ends in .yaml or .yml.
package report
