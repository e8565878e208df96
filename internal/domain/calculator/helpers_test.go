package calculator

import (
	"io"
	"iter"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countSeq(seq iter.Seq[Descriptor]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

func ids(ds []Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func ptr(f float64) *float64 { return &f }
