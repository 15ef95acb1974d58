// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE handling used for package records and
// the configuration file.
//
// Parsing follows the same three steps everywhere:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed pkginfo_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[infoDoc](
//	    schemaBytes,
//	    raw,
//	    "#PackageInfo",
//	    cueutil.WithFilename("info"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes the CUE path of the offending field
//	}
//	return result.Value, nil
//
// Generation goes the other way: Quote and QuoteLabel produce CUE literals that
// always parse back to the original string.
package cueutil
