package sync

import "github.com/quillforge/quill/internal/schema"

// wins reports whether copy a strictly beats copy b under last-write-wins:
// newer updated_at wins; on equal timestamps the higher sync_version wins.
// A full tie on both fields is not a win for either side.
func wins(a, b *schema.Record) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.SyncVersion > b.SyncVersion
}

// remoteWins decides the pull direction: the remote copy is applied locally
// when it strictly wins, and also on a full timestamp+version tie when the
// copies come from different devices. Tied copies from different writers
// would otherwise never converge, so the rendezvous copy is adopted
// deterministically; a tie with our own echoed-back write is left alone.
func remoteWins(remote, local *schema.Record) bool {
	if wins(remote, local) {
		return true
	}
	if wins(local, remote) {
		return false
	}
	return remote.DeviceID != local.DeviceID
}
