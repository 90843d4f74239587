package phoenix

// WatchedTable identifies a table the change-detection poller tracks.
type WatchedTable string

const (
	WatchedUsers       WatchedTable = "users"
	WatchedAssignments WatchedTable = "project_assignments"
	WatchedLinks       WatchedTable = "discord_links"
)

func WatchedTables() []WatchedTable {
	return []WatchedTable{WatchedUsers, WatchedAssignments, WatchedLinks}
}
