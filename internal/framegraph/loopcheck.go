package framegraph

import (
	"github.com/PhilNad/with-respect-to/internal/se3"
	"github.com/PhilNad/with-respect-to/internal/sqlitestore"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// quatLoopCheck walks the parent chain one record at a time — as opposed to
// the store's single recursive-CTE root-walk — composing poses with
// quaternions, and reports KinematicLoop the moment the walk revisits the
// name it started from. It runs only as a diagnostic when the primary walk
// failed to reach a NIL parent within MAX_DEPTH: a genuine cycle is
// reported as KinematicLoop, while a merely disconnected or overlong chain
// falls through to the primary path's TruncatedChain.
func (g *FrameGraph) quatLoopCheck(originalName string) *wrterr.Error {
	rec, err := g.store.FetchByName(originalName)
	if err != nil || rec == nil || rec.Parent == "" {
		return nil
	}

	accum := rec.Pose
	current := rec.Parent
	for depth := 1; depth < sqlitestore.MaxDepth; depth++ {
		if current == originalName {
			return wrterr.Named(wrterr.KinematicLoop, originalName, "ancestor walk revisited its own starting subject")
		}
		next, err := g.store.FetchByName(current)
		if err != nil || next == nil {
			return nil
		}
		accum = se3.ComposeQuat(next.Pose, accum)
		if next.Parent == "" {
			return nil
		}
		current = next.Parent
	}
	return nil
}
