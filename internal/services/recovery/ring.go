package recovery

import "github.com/portalclube/payment-reconciler/internal/domain/models"

// snapshotRing is a fixed-capacity FIFO of health snapshots. The oldest
// snapshot is evicted first; there is no time-based expiry.
type snapshotRing struct {
	buf []models.SystemHealthSnapshot
	cap int
}

func newSnapshotRing(capacity int) *snapshotRing {
	if capacity <= 0 {
		capacity = 60
	}
	return &snapshotRing{cap: capacity}
}

func (r *snapshotRing) add(s models.SystemHealthSnapshot) {
	if len(r.buf) == r.cap {
		copy(r.buf, r.buf[1:])
		r.buf[len(r.buf)-1] = s
		return
	}
	r.buf = append(r.buf, s)
}

func (r *snapshotRing) len() int { return len(r.buf) }

// last returns up to n most recent snapshots, oldest first.
func (r *snapshotRing) last(n int) []models.SystemHealthSnapshot {
	if n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]models.SystemHealthSnapshot, n)
	copy(out, r.buf[len(r.buf)-n:])
	return out
}
