package transfer

import (
	"context"

	"github.com/marmos91/blocksync/internal/logger"
	"github.com/marmos91/blocksync/pkg/metrics"
)

// Drive pairs sink and source and runs the interleaving loop of spec §4.6
// to convergence: forwarding demand, delivering ready block bodies, and
// dispatching index instructions, in that strict priority order, until the
// source has emitted End and the sink reports no missing blocks.
//
// Implemented as an explicit state machine over priorities rather than as
// cooperative suspension (spec §9 Design Notes: "avoids any async runtime
// dependency and preserves the documented ordering guarantees verbatim").
// ctx is consulted only between iterations (spec §5 Cancellation); once
// Drive has called into sink or source for an iteration, it always
// completes that iteration before checking ctx again.
func Drive(ctx context.Context, sink Sink, source Source) error {
	instructionsRemaining := true

	logger.Debug("drive loop starting", logger.Operation("drive"))

	for {
		select {
		case <-ctx.Done():
			logger.Warn("drive loop canceled", logger.Operation("drive"))
			return ErrCanceled
		default:
		}

		if !instructionsRemaining && !sink.IsMissingBlocks() {
			logger.Debug("drive loop converged", logger.Operation("drive"))
			return nil
		}

		if hash, ok := sink.NextRequestedBlock(); ok {
			metrics.RecordDriveIteration("forward_demand")
			if err := source.RequestBlock(hash); err != nil {
				return err
			}
			metrics.RecordBlockRequested()
			continue
		}

		if hash, bytes, ok, err := source.GetNextBlock(); err != nil {
			return err
		} else if ok {
			metrics.RecordDriveIteration("deliver_bytes")
			if err := sink.FeedBlock(hash, bytes); err != nil {
				return err
			}
			metrics.RecordBlockFed()
			continue
		}

		if instructionsRemaining {
			metrics.RecordDriveIteration("dispatch")
			event, ok, err := source.NextFromIndex()
			if err != nil {
				return err
			}
			if !ok {
				// A well-behaved Source always yields an explicit End
				// before exhausting; treat silent exhaustion the same way.
				instructionsRemaining = false
				continue
			}

			switch event.Kind {
			case EventNewFile:
				if err := sink.NewFile(event.Path, event.Modified); err != nil {
					return err
				}
			case EventNewBlock:
				if err := sink.NewBlock(event.Hash, event.Size); err != nil {
					return err
				}
			case EventEnd:
				instructionsRemaining = false
			}
			continue
		}

		// No demand to forward, nothing ready to deliver, and no more
		// instructions to dispatch, but the sink still reports missing
		// blocks: the driver has no work it can make progress on this
		// iteration. Liveness depends on the Source eventually producing
		// the requested bytes (spec §4.6 Termination); busy-loop on the
		// caller's ctx until it does, or until ctx is canceled.
		metrics.RecordDriveIteration("idle")
		select {
		case <-ctx.Done():
			return ErrCanceled
		default:
		}
	}
}
