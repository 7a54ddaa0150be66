// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command pixmeta-dump extracts image metadata and prints it as JSON.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finchlabs/pixmeta"
	"github.com/finchlabs/pixmeta/pixmetajson"
)

var imageFormats = map[string]pixmeta.ImageFormat{
	"jpg":  pixmeta.JPEG,
	"jpeg": pixmeta.JPEG,
	"tif":  pixmeta.TIFF,
	"tiff": pixmeta.TIFF,
	"png":  pixmeta.PNG,
	"webp": pixmeta.WebP,
	"heic": pixmeta.HEIF,
	"heif": pixmeta.HEIF,
	"avif": pixmeta.AVIF,
	"raw":  pixmeta.RAW,
	"cr2":  pixmeta.RAW,
	"nef":  pixmeta.RAW,
	"arw":  pixmeta.RAW,
	"rw2":  pixmeta.RAW,
	"dng":  pixmeta.RAW,
}

func main() {
	formatFlag := flag.String("format", "", "image format (jpeg, tiff, png, webp, heif, avif, raw); inferred from the file extension if empty")
	valuesFlag := flag.Bool("values", false, "print logical values instead of print strings")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pixmeta-dump [-format fmt] [-values] <file>")
		os.Exit(2)
	}
	filename := flag.Arg(0)

	name := *formatFlag
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(filename), ".")
	}
	format, ok := imageFormats[strings.ToLower(name)]
	if !ok {
		fmt.Fprintf(os.Stderr, "pixmeta-dump: unknown image format %q\n", name)
		os.Exit(2)
	}

	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixmeta-dump: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var tags pixmeta.Tags
	_, err = pixmeta.Decode(pixmeta.Options{
		R:           f,
		ImageFormat: format,
		HandleTag: func(ti pixmeta.TagInfo) error {
			tags.Add(ti)
			return nil
		},
		Warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixmeta-dump: %v\n", err)
		os.Exit(1)
	}

	marshal := pixmetajson.Marshal
	if *valuesFlag {
		marshal = pixmetajson.MarshalValues
	}
	b, err := marshal(tags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixmeta-dump: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n", b)
}
