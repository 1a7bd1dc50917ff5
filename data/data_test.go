package data

import (
	"bytes"
	"testing"
)

func TestSampleRacecardEmbedded(t *testing.T) {
	if len(SampleRacecard) == 0 {
		t.Fatalf("embedded sample is empty")
	}
	if !bytes.HasPrefix(SampleRacecard, []byte("馬番,馬名")) {
		t.Fatalf("unexpected header: %q", SampleRacecard[:20])
	}
}
