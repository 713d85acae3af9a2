// Copyright 2025 Pentora Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package format renders command results as tables or JSON.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// OutputMode selects how results are printed.
type OutputMode string

const (
	ModeJSON  OutputMode = "json"
	ModeTable OutputMode = "table"
)

// Formatter prints command results.
type Formatter interface {
	// PrintJSON writes data as indented JSON to stdout.
	PrintJSON(data any) error

	// PrintTable writes rows under headers. In JSON mode every row becomes
	// an object keyed by header.
	PrintTable(headers []string, rows [][]string) error

	// PrintSummary writes a closing line, to stderr in JSON mode so stdout
	// stays machine-readable.
	PrintSummary(message string) error

	// PrintError writes err with an error code when one is known.
	PrintError(err error) error
}

// Coder is implemented by errors carrying a machine-readable code.
type Coder interface {
	Code() string
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New returns a Formatter writing to stdout and stderr.
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.mode == ModeJSON {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[strings.ToLower(header)] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)

	head := make([]string, len(headers))
	for i, h := range headers {
		head[i] = strings.ToUpper(h)
		if f.color {
			head[i] = color.New(color.Bold).Sprint(head[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(head, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}
	if f.mode == ModeJSON {
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}
	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintError(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var c Coder
	if errors.As(err, &c) {
		code = c.Code()
	}

	if f.mode == ModeJSON {
		out := map[string]any{
			"success": false,
			"error":   err.Error(),
		}
		if code != "" {
			out["code"] = code
		}
		return f.PrintJSON(out)
	}

	msg := fmt.Sprintf("Error: %v", err)
	if code != "" {
		msg = fmt.Sprintf("Error [%s]: %v", code, err)
	}
	var writeErr error
	if f.color {
		_, writeErr = color.New(color.FgRed).Fprintln(f.stderr, msg)
	} else {
		_, writeErr = fmt.Fprintln(f.stderr, msg)
	}
	return writeErr
}

// ValidateMode rejects unknown output modes.
func ValidateMode(mode string) error {
	switch OutputMode(strings.ToLower(mode)) {
	case ModeJSON, ModeTable:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'json' or 'table')", mode)
	}
}

// ParseMode converts a string to OutputMode, defaulting to table.
func ParseMode(mode string) OutputMode {
	if strings.EqualFold(mode, string(ModeJSON)) {
		return ModeJSON
	}
	return ModeTable
}
