// Package progress tracks which lessons a learner completed and the hearts
// they earned.
//
// A Store persists one Record per learner. Backends are memory, a JSON file
// directory, Redis, a SQL database (sqlite or postgres) and Firestore over
// REST. Remote backends can run behind a FallbackStore that keeps a local
// copy and serves it while the remote is down.
//
// Tracker applies the rules: every newly completed lesson is worth one
// heart and every HeartsPerGorillaHeart hearts make a gorilla heart.
package progress
