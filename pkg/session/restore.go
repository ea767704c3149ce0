package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pmpwsk/cocoding/internal/logger"
	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
)

// RestoreVersion rolls a file back to a previously saved version.
//
// Sequence: take the advisory lock, broadcast LockEditor to the other
// participants, load the version's state, rename the file back to the
// version's stored name (a name collision is the sole expected failure and
// aborts the restore), swap the live log and persist, then unlock and
// broadcast UnlockEditor so clients reload. The returned aborted flag mirrors
// what was broadcast.
//
// While the lock is held, updates pushed by other participants are still
// accepted and then superseded by the swap; see LockTable.
func (h *Hub) RestoreVersion(ctx context.Context, c Conn, fileID, versionID int64) (aborted bool, err error) {
	s := h.attachedSession(c, fileID)
	if s == nil {
		return false, nil
	}

	user, err := h.rel.GetUser(ctx, c.UserID())
	if err != nil {
		return false, err
	}
	name := user.GetDisplayName()

	if !h.locks.Lock(fileID, name) {
		return false, storeerrors.NewInvalidArgument(fmt.Sprintf("a restore of file %d is already in progress", fileID))
	}

	recipients := s.Recipients(c.ID())
	for _, recipient := range recipients {
		recipient.LockEditor(fileID, name)
	}

	aborted, restoreErr := h.applyRestore(ctx, s, c.UserID(), fileID, versionID)

	h.locks.Unlock(fileID)

	// Recompute the recipient list: anyone who attached during the restore
	// received LockEditor from EnterFile and must get the unlock too.
	recipients = s.Recipients(c.ID())

	_, changedAt, _ := s.Snapshot()
	for _, recipient := range recipients {
		recipient.UnlockEditor(fileID, changedAt, name, aborted)
	}

	if h.metrics != nil {
		h.metrics.RecordRestore(aborted)
	}
	if aborted {
		logger.Info("Version restore aborted",
			logger.KeyFileID, fileID,
			logger.KeyVersionID, versionID,
			logger.KeyError, restoreErr)
	} else {
		logger.Info("Version restored",
			logger.KeyFileID, fileID,
			logger.KeyVersionID, versionID,
			logger.KeyUserID, c.UserID())
	}
	return aborted, restoreErr
}

// applyRestore performs the storage side of a restore with the lock already
// held. A name collision aborts with a nil error (expected condition,
// reported through the aborted flag); anything else aborts with the cause.
func (h *Hub) applyRestore(ctx context.Context, s *FileSession, userID, fileID, versionID int64) (bool, error) {
	version, err := h.rel.GetVersion(ctx, versionID)
	if err != nil {
		return true, err
	}
	updates, err := h.states.GetVersionState(ctx, versionID)
	if err != nil {
		return true, err
	}
	file, err := h.rel.GetFile(ctx, fileID)
	if err != nil {
		return true, err
	}

	if file.Name != version.Name {
		if err := h.rel.CheckNameFree(ctx, file.ProjectID, file.ParentID, version.Name, fileID); err != nil {
			if storeerrors.HasCode(err, storeerrors.ErrNameCollision) {
				return true, nil
			}
			return true, err
		}
		if err := h.rel.RenameFile(ctx, fileID, version.Name); err != nil {
			return true, err
		}
	}

	s.restoreLog(updates, time.Now().UTC(), userID)
	if err := s.Persist(ctx); err != nil {
		// The swap already happened; the dirty flag stays set and the next
		// worker sweep retries.
		logger.Error("Persist after restore failed",
			logger.KeyFileID, fileID,
			logger.KeyError, err)
	}
	return false, nil
}
