// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/DonkRonk17/batchrunner/internal/ctxlog"
	"github.com/hashicorp/go-getter/v2"
	"github.com/spf13/afero"
)

const (
	extHCL  = ".hcl"
	extYAML = ".yaml"
	extYML  = ".yml"
	extJSON = ".json"
)

var (
	// ErrGetConfigFile is returned when the file cannot be read or fetched.
	ErrGetConfigFile = errors.New("failed to get config file")
	// ErrEmptyLocation is returned when no location is given.
	ErrEmptyLocation = errors.New("config location is empty")
)

// Load reads the batch file at location and parses it according to its extension:
// .hcl is HCL, .yaml, .yml and .json are structured or flat YAML/JSON, anything else is a line file.
// Locations that do not exist on FsFactory are fetched with go-getter.
func Load(ctx context.Context, location string) (*Source, error) {
	if location == "" {
		return nil, ErrEmptyLocation
	}

	data, err := read(ctx, location)
	if err != nil {
		return nil, err
	}

	src, err := Parse(data, location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	src.Name = location

	return src, nil
}

// Parse parses data according to the extension of name.
func Parse(data []byte, name string) (*Source, error) {
	switch strings.ToLower(path.Ext(stripQuery(name))) {
	case extHCL:
		return ParseHCL(data, name)
	case extYAML, extYML, extJSON:
		return ParseYAML(data)
	default:
		return &Source{Lines: ParseLines(data)}, nil
	}
}

// Inline builds a flat source from command lines given on the command line.
func Inline(lines []string) *Source {
	return &Source{Name: "inline", Lines: trimLines(lines)}
}

func read(ctx context.Context, location string) ([]byte, error) {
	fs := FsFactory()

	if ok, _ := afero.Exists(fs, location); ok {
		ctxlog.Debug(ctx, "reading local config", "path", location)

		data, err := afero.ReadFile(fs, location)
		if err != nil {
			return nil, errors.Join(ErrGetConfigFile, err)
		}

		return data, nil
	}

	ctxlog.Debug(ctx, "fetching config", "url", location)

	return getURL(ctx, location)
}

// getURL retrieves the content from the specified URL using Hashicorp's go-getter.
// It removes the temporary directory after reading the file.
func getURL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrGetConfigFile
	}

	tmpDir, err := os.MkdirTemp("", "batchrunner-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string
	// Remote sources are fetched as a directory and the file is read from there.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, errors.Join(ErrGetConfigFile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			return nil, fmt.Errorf("%w: invalid URL format: %s", ErrGetConfigFile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	return data, nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL splits a go-getter URL into the directory URL and the file name.
// Any query string is kept on the directory URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref, fileName string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	if before, after, ok := strings.Cut(last, goGetterRefSeparator); ok {
		ref = after
		last = before
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName = filepath.Base(last)
	parts[len(parts)-1] = filepath.Dir(last)

	if parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}

func stripQuery(name string) string {
	before, _, _ := strings.Cut(name, goGetterRefSeparator)
	return before
}
