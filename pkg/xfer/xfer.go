// Package xfer drives bulk byte transfer over an httpclient.Socket or a
// plain io.Writer/io.Reader, metering every chunk into pkg/status and
// polling status.Shutdown between chunks so a process-wide stop request
// aborts an in-flight transfer within one chunk instead of running to
// completion.
package xfer

import (
	"context"
	"errors"
	"io"

	"github.com/nimbusfs/synccore/pkg/apipool"
	"github.com/nimbusfs/synccore/pkg/httpclient"
	"github.com/nimbusfs/synccore/pkg/log"
	"github.com/nimbusfs/synccore/pkg/metrics"
	"github.com/nimbusfs/synccore/pkg/status"
)

// ChunkSize is the buffer size used by the *All helpers below.
const ChunkSize = 64 * 1024

var logger = log.WithComponent("xfer")

func logAbort(kind string, total int64) {
	logger.Info().Int64("bytes", total).Msg(kind + " aborted: shutdown requested")
}

// ErrShuttingDown is returned when status.Shutdown is set mid-transfer,
// matching the apipool.ErrTempFail category so callers already switching
// on category errors don't need a separate case.
var ErrShuttingDown = apipool.ErrTempFail

// ReadAllDownload copies the full body of sock into w, ChunkSize bytes at
// a time, adding each chunk's length to status's downloaded counter and
// checking status.Shutdown before every read. The whole call is timed into
// metrics.TransferDuration{direction="download"}, and a non-clean finish
// is counted in metrics.TransfersFailedTotal.
func ReadAllDownload(ctx context.Context, sock *httpclient.Socket, w io.Writer) (int64, error) {
	timer := metrics.NewTimer()
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		if status.Shutdown.IsSet() {
			logAbort("download", total)
			timer.ObserveDurationVec(metrics.TransferDuration, "download")
			metrics.TransfersFailedTotal.WithLabelValues("download", "shutdown").Inc()
			return total, ErrShuttingDown
		}
		select {
		case <-ctx.Done():
			timer.ObserveDurationVec(metrics.TransferDuration, "download")
			metrics.TransfersFailedTotal.WithLabelValues("download", "context").Inc()
			return total, ctx.Err()
		default:
		}

		n, err := sock.ReadAll(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				timer.ObserveDurationVec(metrics.TransferDuration, "download")
				metrics.TransfersFailedTotal.WithLabelValues("download", "write").Inc()
				return total, werr
			}
			total += int64(n)
			status.AddDownloaded(int64(n))
			metrics.BytesDownloadedTotal.Add(float64(n))
		}
		if err != nil {
			timer.ObserveDurationVec(metrics.TransferDuration, "download")
			metrics.TransfersFailedTotal.WithLabelValues("download", "io").Inc()
			return total, err
		}
		if n == 0 {
			timer.ObserveDurationVec(metrics.TransferDuration, "download")
			return total, nil
		}
	}
}

// WriteAllUpload copies from r into w, ChunkSize bytes at a time, metering
// each chunk into status's uploaded counter and checking status.Shutdown
// before every read. The whole call is timed into
// metrics.TransferDuration{direction="upload"}, and a non-clean finish is
// counted in metrics.TransfersFailedTotal.
func WriteAllUpload(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	timer := metrics.NewTimer()
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		if status.Shutdown.IsSet() {
			logAbort("upload", total)
			timer.ObserveDurationVec(metrics.TransferDuration, "upload")
			metrics.TransfersFailedTotal.WithLabelValues("upload", "shutdown").Inc()
			return total, ErrShuttingDown
		}
		select {
		case <-ctx.Done():
			timer.ObserveDurationVec(metrics.TransferDuration, "upload")
			metrics.TransfersFailedTotal.WithLabelValues("upload", "context").Inc()
			return total, ctx.Err()
		default:
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				timer.ObserveDurationVec(metrics.TransferDuration, "upload")
				metrics.TransfersFailedTotal.WithLabelValues("upload", "write").Inc()
				return total, werr
			}
			total += int64(n)
			status.AddUploaded(int64(n))
			metrics.BytesUploadedTotal.Add(float64(n))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				timer.ObserveDurationVec(metrics.TransferDuration, "upload")
				return total, nil
			}
			timer.ObserveDurationVec(metrics.TransferDuration, "upload")
			metrics.TransfersFailedTotal.WithLabelValues("upload", "io").Inc()
			return total, rerr
		}
	}
}

// downloadResult is the value delivered on ReadAllDownloadAsync's channel.
type downloadResult struct {
	Bytes int64
	Err   error
}

// ReadAllDownloadAsync runs ReadAllDownload in a goroutine and returns a
// channel that receives exactly one result once the transfer finishes,
// errors, or is aborted by shutdown.
func ReadAllDownloadAsync(ctx context.Context, sock *httpclient.Socket, w io.Writer) <-chan downloadResult {
	out := make(chan downloadResult, 1)
	go func() {
		n, err := ReadAllDownload(ctx, sock, w)
		out <- downloadResult{Bytes: n, Err: err}
	}()
	return out
}
