package main

import (
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/malbeclabs/strata/internal/frame"
)

// writeArrowIPC dumps a frame as an Arrow IPC file, used by the ingest/
// validate/curate subcommands to hand intermediate layers between
// invocations without re-deriving them.
func writeArrowIPC(f *frame.Frame, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	mem := memory.NewGoAllocator()
	rec := f.ToArrowRecord(mem)
	defer rec.Release()

	w, err := ipc.NewFileWriter(out, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return err
	}
	if err := w.Write(rec); err != nil {
		return err
	}
	return w.Close()
}

// readArrowIPC is the inverse of writeArrowIPC.
func readArrowIPC(path string) (*frame.Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(in, ipc.WithAllocator(mem))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var frames []*frame.Frame
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, err
		}
		fr, err := frame.FromArrowRecord(rec)
		if err != nil {
			return nil, err
		}
		frames = append(frames, fr)
	}
	if len(frames) == 0 {
		return &frame.Frame{}, nil
	}
	return frame.Concat(frames...)
}
