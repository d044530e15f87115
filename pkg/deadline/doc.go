// Package deadline implements the shared monotonic deadline gate.
//
// One Tracker is created per orchestration run and handed to every
// component that polls. Components never sleep past the deadline: each
// loop iteration first asks Remaining() and bails out with a stage-tagged
// TimeoutError when the answer is no.
package deadline
