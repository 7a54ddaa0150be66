package fujifilm

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/proc"
)

func TestFFMVExtractsStreamName(t *testing.T) {
	c := qt.New(t)

	data := make([]byte, 48)
	copy(data, "QuickTime Movie\x00")

	ctx := proc.NewContext("TIFF", "FujiFilm::FFMV")
	ctx = ctx.WithCameraInfo("FUJIFILM", "X-T5")
	ctx.ByteOrder = binary.BigEndian

	p := FFMVProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Perfect)

	result, err := p.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["MovieStreamName"].String(), qt.Equals, "QuickTime Movie")
}

func TestMovieTableNameFallsBackToGood(t *testing.T) {
	c := qt.New(t)
	ctx := proc.NewContext("TIFF", "FujiFilm::MovieStream")
	ctx = ctx.WithCameraInfo("FUJIFILM", "X-T5")
	p := FFMVProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Good)
}
