package journal

import (
	"context"

	"github.com/vexfs/vexfs/internal/logger"
)

// recoverLocked scans the body from Tail to Head, grouping operation
// records by transaction id, and returns only the transactions that are
// terminated by a commit record whose transaction checksum matches the
// XOR of the preceding operations' header checksums. A truncated or
// corrupt tail — including a transaction with no terminating commit
// record — is discarded, per §4.1.
func (j *Journal) recoverLocked(ctx context.Context) ([]CommittedTxn, error) {
	pending := make(map[TxnID][]*OperationRecord)
	var committed []CommittedTxn

	pos := j.sb.Tail
scan:
	for pos < j.sb.Head {
		headerBuf, err := j.readBody(ctx, pos, headerEncodedSize)
		if err != nil {
			logger.WarnCtx(ctx, "journal recovery: truncated tail", "offset", pos)
			break scan
		}
		h, err := decodeHeader(headerBuf)
		if err != nil {
			logger.WarnCtx(ctx, "journal recovery: corrupt record, discarding remainder", "offset", pos, "err", err)
			break scan
		}
		if h.Length < headerEncodedSize {
			break scan
		}
		bodyLen := h.Length - headerEncodedSize
		body, err := j.readBody(ctx, pos+headerEncodedSize, uint64(bodyLen))
		if err != nil {
			break scan
		}
		if headerChecksum(h) != h.Checksum {
			logger.WarnCtx(ctx, "journal recovery: header checksum mismatch, discarding remainder", "offset", pos)
			break scan
		}

		switch h.Kind {
		case RecordOperation:
			op, err := decodeOperation(h, body)
			if err != nil {
				logger.WarnCtx(ctx, "journal recovery: corrupt operation, discarding remainder", "offset", pos, "err", err)
				break scan
			}
			pending[h.TxnID] = append(pending[h.TxnID], op)
		case RecordCommit:
			cr, err := decodeCommit(h, body)
			if err != nil {
				break scan
			}
			ops := pending[h.TxnID]
			var xor uint32
			for _, op := range ops {
				xor ^= op.Header.Checksum
			}
			if xor == cr.TxnChecksum && uint32(len(ops)) == cr.OpCount {
				committed = append(committed, CommittedTxn{TxnID: h.TxnID, Ops: ops})
			} else {
				logger.WarnCtx(ctx, "journal recovery: transaction checksum mismatch, rejecting", "tid", h.TxnID)
			}
			delete(pending, h.TxnID)
		default:
			logger.WarnCtx(ctx, "journal recovery: unknown record kind, discarding remainder", "offset", pos, "kind", h.Kind)
			break scan
		}

		pos += uint64(h.Length)
	}

	if len(pending) > 0 {
		logger.InfoCtx(ctx, "journal recovery: discarding incomplete transactions", "count", len(pending))
	}
	return committed, nil
}

// Recover re-runs the recovery scan on demand, e.g. for tests that want to
// inspect what a crash mid-write would leave recoverable without closing
// and reopening the Journal.
func (j *Journal) Recover(ctx context.Context) ([]CommittedTxn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recoverLocked(ctx)
}
