package enum

type ConflictPolicy string

const (
	PreferLocal  ConflictPolicy = "prefer_local"
	PreferRemote ConflictPolicy = "prefer_remote"
)

func (t ConflictPolicy) String() string {
	return string(t)
}

func GetConflictPolicy(s string) ConflictPolicy {
	if ConflictPolicy(s) == PreferRemote {
		return PreferRemote
	}
	return PreferLocal
}

type SyncDirection string

const (
	SyncPush SyncDirection = "push"
	SyncPull SyncDirection = "pull"
)

func (t SyncDirection) String() string {
	return string(t)
}
