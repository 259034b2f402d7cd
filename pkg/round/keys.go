package round

import "fmt"

// Key layout (spec §6): one family of keys per round, indexed by id and, for
// sequencing, by a monotonic number.
func roundKey(id string) string              { return fmt.Sprintf("round:%s", id) }
func roundNumberKey(n int64) string           { return fmt.Sprintf("round:number:%d", n) }
func participantsSetKey(roundID string) string { return fmt.Sprintf("round:%s:participants", roundID) }
func participantKey(roundID, wallet string) string {
	return fmt.Sprintf("round:%s:participant:%s", roundID, wallet)
}
func logsKey(roundID, wallet string) string {
	return fmt.Sprintf("round:%s:logs:%s", roundID, wallet)
}
func leaderboardKey(roundID string) string { return fmt.Sprintf("round:%s:leaderboard", roundID) }

const (
	activeRoundsKey   = "rounds:active"
	runningRoundsKey  = "rounds:running"
	finishedRoundsKey = "rounds:finished"
	roundCounterKey   = "round:counter"
)
