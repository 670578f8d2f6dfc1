// Package spark is a client for the Spark chat REST API.
//
// A Client owns one identity cache: every room, message, person, team,
// membership, team membership and webhook it hands out is the single
// in-memory instance for its id, whether it came from a typed accessor, a
// list call or a webhook delivery. Fields are overwritten in place when a
// Load, Commit or list call for that id succeeds, and never touched when one
// fails.
//
//	client, err := spark.NewClient(spark.ClientConfig{AccessToken: token})
//	room := spark.NewRoom("standup", nil)
//	if err := client.Commit(ctx, room); err != nil { ... }
//	msg := spark.NewMessageToRoom(room, nil, "hello")
//	if err := client.Commit(ctx, msg); err != nil { ... }
package spark
