// Package checkpoint defines the snapshot/rollback collaborator consulted
// before sub-agents mutate files. Only the contract and a no-op live here:
// the execution loop opens and closes one session per task and snapshots
// each path before it is written, while Rollback is left to callers holding
// the session id from the task result.
package checkpoint

// Checkpointer snapshots files so a session's writes can be rolled back.
type Checkpointer interface {
	// BeginSession opens a checkpoint session and returns its id.
	BeginSession(description string) (string, error)

	// SnapshotPath records the current state of path before it is modified.
	SnapshotPath(path string) error

	// EndSession closes the current session.
	EndSession(description string) error

	// Rollback restores every path snapshotted in session id.
	Rollback(id string) error
}

type nop struct{}

// Nop returns a Checkpointer that records nothing.
func Nop() Checkpointer { return nop{} }

func (nop) BeginSession(string) (string, error) { return "", nil }
func (nop) SnapshotPath(string) error           { return nil }
func (nop) EndSession(string) error             { return nil }
func (nop) Rollback(string) error               { return nil }
