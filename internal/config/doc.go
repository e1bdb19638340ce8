// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads batch definitions.
//
// Two forms are understood. The structured form is a YAML, JSON or HCL document with named commands,
// dependencies and per-command policies. The flat form is a list of bare command lines, either a text
// file with one command per line (blank lines and lines starting with # are ignored) or a YAML/JSON
// list of strings. Flat commands are named cmd-1, cmd-2, and so on.
//
// Sources are read through FsFactory, or fetched with go-getter when they are not local paths.
package config
