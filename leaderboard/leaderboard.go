// Package leaderboard ranks keys by score. The progression engine uses it to
// order waste categories by how many counting scans each has received.
package leaderboard

// Entry represents a ranked key.
type Entry struct {
	Key   string `json:"key"`
	Score int64  `json:"score"`
}

// Board abstracts ranking operations.
type Board interface {
	Update(key string, score int64)
	Remove(key string)
	TopN(n int) []Entry
	Get(key string) (Entry, bool)
	Len() int
}
