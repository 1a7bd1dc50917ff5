// Package data ships the bundled race card sample inside the binary.
package data

import _ "embed"

// SampleName is the source name reported for the embedded sample.
const SampleName = "sample_racecard.csv"

// SampleRacecard is the bundled race card, used when no sample file is on disk.
//
//go:embed sample_racecard.csv
var SampleRacecard []byte
