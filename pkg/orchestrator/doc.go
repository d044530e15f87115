/*
Package orchestrator owns the builder pool lifecycle for one run.

The state machine is

	Constructed → Assigning → Assigned → SettingUp → Ready → CleaningUp → Terminal

Assign fires the control-plane request as a background task; Setup is the
single rendezvous point that joins it, then drives the registrar through
every assigned worker. At most one assignment is outstanding: a second
Assign replaces the tracked handle and the earlier result is discarded.

Cleanup runs two independent teardown arms (removing the builder cluster
identity and removing every recorded credential directory) and never
raises: teardown failures are logged so that one arm's failure cannot
block the other. A run that never started Setup has nothing to undo.
*/
package orchestrator
