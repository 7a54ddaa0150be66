// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package pixmeta

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/finchlabs/pixmeta/internal/xmp"
)

func decodeXMP(r io.Reader, opts Options) error {
	if opts.HandleXMP != nil {
		if err := opts.HandleXMP(r); err != nil {
			return err
		}
		// Read one more byte to make sure we're at EOF.
		var b [1]byte
		if _, err := r.Read(b[:]); err != io.EOF {
			return errors.New("expected EOF after XMP")
		}
		return nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	tags, warnings, err := xmp.Read(data)
	for _, w := range warnings {
		opts.Warnf("xmp: %s", w)
	}
	if err != nil {
		return newInvalidFormatError(fmt.Errorf("decoding XMP: %w", err))
	}

	for _, tag := range tags {
		tagInfo := TagInfo{
			Source:    XMP,
			Tag:       tag.Name,
			Namespace: "XMP",
			Value:     xmpTagValue(tag),
		}
		if !opts.ShouldHandleTag(tagInfo) {
			continue
		}
		if err := opts.HandleTag(tagInfo); err != nil {
			return err
		}
	}

	return nil
}

// xmpTagValue converts a flattened XMP property to the plain Go value
// TagInfo carries: GPS coordinates become decimal degrees, lists become
// string slices (single-element lists collapse to the scalar, which is how
// ExifTool does it), and everything else keeps its string form.
func xmpTagValue(tag xmp.Tag) any {
	switch tag.Name {
	case "GPSLatitude", "GPSLongitude":
		if deg, err := parseXMPGPSCoordinate(tag.Value.String()); err == nil {
			return deg
		}
	}

	if arr, ok := tag.Value.AsArray(); ok {
		if len(arr) == 1 {
			return arr[0].String()
		}
		items := make([]string, len(arr))
		for i, v := range arr {
			items[i] = v.String()
		}
		return items
	}

	return tag.Value.String()
}

// parseXMPGPSCoordinate parses GPS coordinates from XMP format.
// XMP GPS coordinates can be in several formats:
// - DMS with direction: "26,34.951N" or "80,12.014W"
// - Decimal with direction: "26.5825N" or "80.2002W"
// - Pure decimal: "26.5825" or "-80.2002"
func parseXMPGPSCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}

	// Check for direction suffix (N, S, E, W)
	var negative bool
	lastChar := s[len(s)-1]
	switch lastChar {
	case 'S', 's', 'W', 'w':
		negative = true
		s = s[:len(s)-1]
	case 'N', 'n', 'E', 'e':
		s = s[:len(s)-1]
	}

	var degrees float64

	// Check if it's in DMS format (contains comma)
	if idx := strings.Index(s, ","); idx != -1 {
		// Format: "degrees,minutes" e.g., "26,34.951"
		degStr := s[:idx]
		minStr := s[idx+1:]

		deg, err := strconv.ParseFloat(degStr, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing degrees: %w", err)
		}

		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing minutes: %w", err)
		}

		degrees = deg + min/60.0
	} else {
		// Pure decimal format
		var err error
		degrees, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing decimal: %w", err)
		}
	}

	if negative {
		degrees = -degrees
	}

	return degrees, nil
}
