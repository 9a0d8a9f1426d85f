// Package standup is the lifecycle engine for standup check-ins.
//
// A Room marks a chat as governed. A valid post in a room creates an Entry
// that snapshots the room's role ids and expires after the room's cooldown.
// While an Entry is active, further posts by the same user in that room are
// rejected. The Sweeper periodically revokes the roles of expired entries and
// deletes them.
//
// Decisions are computed by Decide, a pure function returning the entry to
// persist plus the side effects (Intents) to run. Engine and Sweeper apply
// them through an Effector, so transports stay outside this package.
package standup
